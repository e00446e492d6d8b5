// Package storetest opens isolated in-memory sqlite stores for tests.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/store"
)

var seq atomic.Int64

// Open returns a repository backed by a fresh shared-cache in-memory database.
func Open(t testing.TB) store.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := store.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.NewRepository(db)
}

// User inserts a user with a placeholder password hash.
func User(t testing.TB, repo store.Repository, name string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name, name+"@example.com", "x", time.Now())
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	saved, err := repo.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return saved
}
