package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginFailKeyPrefix = "auth:login_fail:"

// LoginLimiter counts failed logins per username in a fixed redis window.
// A nil limiter allows everything.
type LoginLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewLoginLimiter(rdb *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	if rdb == nil || maxAttempts <= 0 {
		return nil
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &LoginLimiter{rdb: rdb, max: maxAttempts, window: window}
}

// Blocked reports whether username exhausted its attempts and how long until the window resets.
func (l *LoginLimiter) Blocked(ctx context.Context, username string) (bool, time.Duration, error) {
	if l == nil {
		return false, 0, nil
	}
	key := failKey(username)
	n, err := l.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("login limiter get: %w", err)
	}
	if n < l.max {
		return false, 0, nil
	}
	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return true, ttl, nil
}

func (l *LoginLimiter) Fail(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	key := failKey(username)
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("login limiter incr: %w", err)
	}
	// 최초 생성 시에만 TTL 부여
	if n == 1 {
		_ = l.rdb.Expire(ctx, key, l.window).Err()
	}
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if l == nil {
		return nil
	}
	return l.rdb.Del(ctx, failKey(username)).Err()
}

func failKey(username string) string {
	return loginFailKeyPrefix + strings.ToLower(strings.TrimSpace(username))
}
