// Package ai picks replies for the engine side of AI games.
package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/rules"
)

// ErrNoMove is returned when the position has no legal reply.
var ErrNoMove = errors.New("no legal move")

// Mover chooses a UCI move for the side to move after moves from the initial position.
type Mover interface {
	BestMove(ctx context.Context, moves []string) (string, error)
	Name() string
}

// Random plays a uniformly random legal move.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) Name() string { return "random" }

func (r *Random) BestMove(_ context.Context, moves []string) (string, error) {
	b, err := rules.Replay(moves)
	if err != nil {
		return "", err
	}
	legal := b.LegalMoves()
	if len(legal) == 0 {
		return "", ErrNoMove
	}
	r.mu.Lock()
	i := r.rng.IntN(len(legal))
	r.mu.Unlock()
	return legal[i], nil
}

// Fallback asks Primary first and uses Secondary when it fails or answers with an illegal move.
type Fallback struct {
	Primary   Mover
	Secondary Mover
}

func (f Fallback) Name() string { return f.Primary.Name() }

func (f Fallback) BestMove(ctx context.Context, moves []string) (string, error) {
	mv, err := f.Primary.BestMove(ctx, moves)
	if err == nil && isLegalReply(moves, mv) {
		return mv, nil
	}
	if err == nil {
		err = errors.New("illegal engine reply " + mv)
	}
	obslog.L().Warn("ai_primary_failed",
		zap.String("engine", f.Primary.Name()),
		zap.Int("ply", len(moves)),
		zap.Error(err),
	)
	return f.Secondary.BestMove(ctx, moves)
}

func isLegalReply(moves []string, mv string) bool {
	b, err := rules.Replay(moves)
	if err != nil {
		return false
	}
	_, err = b.Play(mv)
	return err == nil
}
