package leaderboard

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/store"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	cacheKey = "leaderboard:top"
)

// Entry is one leaderboard row.
type Entry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// Service ranks users by Elo. Results are cached in a redis hash keyed by limit when a client is given.
type Service struct {
	repo store.Repository
	rdb  *redis.Client
	ttl  time.Duration
}

func NewService(repo store.Repository, rdb *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, rdb: rdb, ttl: ttl}
}

// TopN returns up to limit users ordered by Elo descending, earlier registration first on ties.
func (s *Service) TopN(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)
	field := strconv.Itoa(limit)

	if s.rdb != nil {
		raw, err := s.rdb.HGet(ctx, cacheKey, field).Bytes()
		if err == nil {
			var cached []Entry
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			obslog.L().Warn("leaderboard_cache_get_failed", zap.Error(err))
		}
	}

	users, err := s.repo.TopUsers(ctx, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]Entry, 0, len(users))
	for _, u := range users {
		out = append(out, Entry{
			UserID:   u.ID,
			Username: u.Username,
			Elo:      u.Elo,
			Wins:     u.Wins,
			Losses:   u.Losses,
			Draws:    u.Draws,
		})
	}

	if s.rdb != nil {
		if b, err := json.Marshal(out); err == nil {
			pipe := s.rdb.TxPipeline()
			pipe.HSet(ctx, cacheKey, field, b)
			pipe.Expire(ctx, cacheKey, s.ttl)
			if _, err := pipe.Exec(ctx); err != nil {
				obslog.L().Warn("leaderboard_cache_set_failed", zap.Error(err))
			}
		}
	}
	return out, nil
}

// TopProfiles returns the full user records of the top ranked players. It bypasses the cache.
func (s *Service) TopProfiles(ctx context.Context, limit int) ([]*domain.User, error) {
	users, err := s.repo.TopUsers(ctx, ClampLimit(limit))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// Invalidate drops every cached page.
func (s *Service) Invalidate(ctx context.Context) {
	if s == nil || s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		obslog.L().Warn("leaderboard_cache_invalidate_failed", zap.Error(err))
	}
}

// ClampLimit applies the default for non-positive limits and caps large ones.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
