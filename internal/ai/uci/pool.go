package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrPoolClosed = errors.New("engine pool closed")

// Pool keeps up to Size warm engine processes sharing one option set.
type Pool struct {
	binaryPath string
	opt        Options
	size       int

	mu     sync.Mutex
	total  int
	closed bool
	idle   chan *Session
}

func NewPool(binaryPath string, opt Options, size int) (*Pool, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("stockfish binary check: %w", err)
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 2
	}
	return &Pool{binaryPath: binaryPath, opt: opt, size: size, idle: make(chan *Session, size)}, nil
}

// Acquire returns an idle session, starts a new one under capacity, or waits.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		default:
		}

		if s, err := p.create(ctx); s != nil || err != nil {
			return s, err
		}

		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns s to the pool. A session that failed is closed instead.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if err != nil || closed {
		p.discard(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.discard(s)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case s := <-p.idle:
			p.discard(s)
		default:
			return nil
		}
	}
}

// create starts a session when under capacity. It returns (nil, nil) at capacity.
func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.total >= p.size {
		p.mu.Unlock()
		return nil, nil
	}
	p.total++
	p.mu.Unlock()

	s, err := NewSession(ctx, p.binaryPath, p.opt)
	if err != nil {
		p.decrement()
		return nil, err
	}
	return s, nil
}

func (p *Pool) discard(s *Session) {
	_ = s.Close()
	p.decrement()
}

func (p *Pool) decrement() {
	p.mu.Lock()
	if p.total > 0 {
		p.total--
	}
	p.mu.Unlock()
}
