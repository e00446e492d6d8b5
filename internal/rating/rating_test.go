package rating

import (
	"context"
	"testing"
	"time"

	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/store/storetest"
)

func TestEloChange(t *testing.T) {
	cases := []struct {
		rating, opp int
		score       float64
		want        int
	}{
		{1200, 1200, 1, 12},
		{1200, 1200, 0, -12},
		{1200, 1200, 0.5, 0},
		{1400, 1200, 1, 6},
		{1200, 1400, 1, 18},
		{1200, 1400, 0.5, 6},
	}
	for _, tc := range cases {
		if got := EloChange(tc.rating, tc.opp, tc.score, 24); got != tc.want {
			t.Fatalf("%d vs %d score %.1f: expected %d, got %d", tc.rating, tc.opp, tc.score, tc.want, got)
		}
	}
}

func finished(g *domain.Game, result string) *domain.Game {
	g.Status = domain.StatusActive
	g.Finish(result, time.Now())
	return g
}

func TestApplyHumanGame(t *testing.T) {
	repo := storetest.Open(t)
	ctx := context.Background()
	w := storetest.User(t, repo, "white")
	b := storetest.User(t, repo, "black")

	g := domain.NewWaitingGame(w.ID, time.Now())
	g.BlackID = &b.ID
	finished(g, domain.ResultWhiteWon)

	u := NewUpdater(repo, Config{Enabled: true})
	calls := 0
	u.OnChange(func(context.Context) { calls++ })

	deltas, err := u.Apply(ctx, g)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(deltas) != 2 || calls != 1 {
		t.Fatalf("expected two deltas and one hook call, got %v / %d", deltas, calls)
	}

	gotW, _ := repo.UserByID(ctx, w.ID)
	gotB, _ := repo.UserByID(ctx, b.ID)
	if gotW.Elo != 1212 || gotW.Wins != 1 || gotB.Elo != 1188 || gotB.Losses != 1 {
		t.Fatalf("unexpected ratings white=%+v black=%+v", gotW, gotB)
	}
}

func TestApplyDrawAndAIGame(t *testing.T) {
	repo := storetest.Open(t)
	ctx := context.Background()
	w := storetest.User(t, repo, "white")
	b := storetest.User(t, repo, "black")
	u := NewUpdater(repo, Config{Enabled: true, KFactor: 32})

	g := domain.NewWaitingGame(w.ID, time.Now())
	g.BlackID = &b.ID
	if _, err := u.Apply(ctx, finished(g, domain.ResultDraw)); err != nil {
		t.Fatalf("apply draw: %v", err)
	}
	gotW, _ := repo.UserByID(ctx, w.ID)
	if gotW.Draws != 1 || gotW.Elo != 1200 {
		t.Fatalf("draw between equals changes nothing but counters: %+v", gotW)
	}

	ai := finished(domain.NewAIGame(w.ID, time.Now()), domain.ResultBlackWon)
	if _, err := u.Apply(ctx, ai); err != nil {
		t.Fatalf("apply ai: %v", err)
	}
	gotW, _ = repo.UserByID(ctx, w.ID)
	if gotW.Losses != 1 || gotW.Elo != 1200 {
		t.Fatalf("ai games update counters only: %+v", gotW)
	}
}

func TestApplySkips(t *testing.T) {
	repo := storetest.Open(t)
	ctx := context.Background()
	w := storetest.User(t, repo, "white")

	aborted := domain.NewWaitingGame(w.ID, time.Now())
	aborted.Finish(domain.ResultAborted, time.Now())
	active := domain.NewAIGame(w.ID, time.Now())

	u := NewUpdater(repo, Config{Enabled: true})
	for _, g := range []*domain.Game{aborted, active} {
		if d, err := u.Apply(ctx, g); err != nil || d != nil {
			t.Fatalf("expected no-op, got %v %v", d, err)
		}
	}

	off := NewUpdater(repo, Config{Enabled: false})
	if d, _ := off.Apply(ctx, finished(domain.NewAIGame(w.ID, time.Now()), domain.ResultWhiteWon)); d != nil {
		t.Fatalf("disabled updater must not write")
	}
	got, _ := repo.UserByID(ctx, w.ID)
	if got.GamesPlayed() != 0 {
		t.Fatalf("no stats expected, got %+v", got)
	}
}
