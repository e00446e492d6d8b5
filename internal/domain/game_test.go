package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewGamesSatisfyInvariants(t *testing.T) {
	now := time.Now()

	w := NewWaitingGame(1, now)
	if err := w.Validate(); err != nil {
		t.Fatalf("waiting game invalid: %v", err)
	}
	if w.Status != StatusWaiting || w.BlackID != nil || w.IsVsAI {
		t.Fatalf("unexpected waiting game %+v", w)
	}
	if w.FEN != StartingFEN || w.Ply() != 0 {
		t.Fatalf("waiting game should start at the initial position")
	}

	ai := NewAIGame(1, now)
	if err := ai.Validate(); err != nil {
		t.Fatalf("ai game invalid: %v", err)
	}
	if ai.Status != StatusActive || ai.BlackID != nil || !ai.IsVsAI {
		t.Fatalf("unexpected ai game %+v", ai)
	}
}

func TestValidateRejectsBrokenRecords(t *testing.T) {
	black := int64(2)
	same := int64(1)
	cases := map[string]*Game{
		"waiting with black":   {WhiteID: &same, BlackID: &black, Status: StatusWaiting},
		"waiting vs ai":        {WhiteID: &same, Status: StatusWaiting, IsVsAI: true},
		"finished no result":   {WhiteID: &same, Status: StatusFinished},
		"ai with black player": {WhiteID: &same, BlackID: &black, Status: StatusActive, IsVsAI: true},
		"self pairing":         {WhiteID: &same, BlackID: &same, Status: StatusActive},
		"unknown status":       {WhiteID: &same, Status: "paused"},
	}
	for name, g := range cases {
		if err := g.Validate(); !errors.Is(err, ErrInvalidGame) {
			t.Fatalf("%s: expected ErrInvalidGame, got %v", name, err)
		}
	}
}

func TestFinishIsOneShot(t *testing.T) {
	g := NewAIGame(1, time.Now())
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g.Finish(ResultWhiteWon, first)
	g.Finish(ResultBlackWon, first.Add(time.Hour))

	if g.Result != ResultWhiteWon || !g.EndedAt.Equal(first) {
		t.Fatalf("second finish must not overwrite: %+v", g)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("finished game invalid: %v", err)
	}
	if c, ok := g.Winner(); !ok || c != White {
		t.Fatalf("expected white winner")
	}
}

func TestColorOf(t *testing.T) {
	g := NewWaitingGame(7, time.Now())
	b := int64(9)
	g.BlackID = &b
	g.Status = StatusActive

	if c, ok := g.ColorOf(7); !ok || c != White {
		t.Fatalf("user 7 should be white")
	}
	if c, ok := g.ColorOf(9); !ok || c != Black {
		t.Fatalf("user 9 should be black")
	}
	if g.IsParticipant(10) {
		t.Fatalf("user 10 is not a participant")
	}
}

func TestNewUserDefaults(t *testing.T) {
	u, err := NewUser(" alice ", "Alice@Example.com", "hash", time.Now())
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if u.Username != "alice" || u.Email != "alice@example.com" {
		t.Fatalf("unexpected normalisation %+v", u)
	}
	if u.Elo != DefaultElo || u.GamesPlayed() != 0 {
		t.Fatalf("unexpected defaults %+v", u)
	}
	if _, err := NewUser("bob", "not-an-email", "hash", time.Now()); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser for bad email, got %v", err)
	}
}
