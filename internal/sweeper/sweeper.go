// Package sweeper aborts waiting games nobody joined in time.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/store"
)

const sweepTimeout = 30 * time.Second

// Publisher receives an event for every aborted game.
type Publisher interface {
	Publish(ctx context.Context, ev domain.GameEvent) error
}

type Sweeper struct {
	repo     store.Repository
	pub      Publisher
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	sched    gocron.Scheduler
}

func New(repo store.Repository, pub Publisher, ttl, interval time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{repo: repo, pub: pub, ttl: ttl, interval: interval, now: time.Now}
}

// Sweep aborts every waiting game older than the TTL and returns how many were aborted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.AbortWaitingBefore(ctx, now.Add(-s.ttl), now)
	for _, id := range ids {
		obslog.L().Info("waiting_game_aborted", zap.Int64("game_id", id))
		if s.pub == nil {
			continue
		}
		ev := domain.GameEvent{
			Type:   domain.EventFinished,
			GameID: id,
			FEN:    domain.StartingFEN,
			Status: domain.StatusFinished,
			Result: domain.ResultAborted,
			At:     now.UTC(),
		}
		if perr := s.pub.Publish(ctx, ev); perr != nil {
			obslog.L().Warn("sweeper_publish_failed", zap.Int64("game_id", id), zap.Error(perr))
		}
	}
	if err != nil {
		return len(ids), fmt.Errorf("sweep waiting games: %w", err)
	}
	return len(ids), nil
}

// Start schedules Sweep every interval. Overlapping runs are skipped.
func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			if _, err := s.Sweep(ctx); err != nil {
				obslog.L().Warn("sweeper_run_failed", zap.Error(err))
			}
		}),
		gocron.WithName("abort-stale-waiting-games"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	sched.Start()
	s.sched = sched
	obslog.L().Info("sweeper_started", zap.Duration("interval", s.interval), zap.Duration("ttl", s.ttl))
	return nil
}

func (s *Sweeper) Shutdown() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
