package domain

import (
	"errors"
	"fmt"
	"time"
)

// StartingFEN is the standard initial chess position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Status represents the game lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

const (
	ResultWhiteWon = "1-0"
	ResultBlackWon = "0-1"
	ResultDraw     = "1/2-1/2"
	ResultAborted  = "aborted"
)

// Sentinel labels used in place of a username for seats without a stored user.
const (
	LabelAI      = "AI"
	LabelPending = "TBD"
)

var ErrInvalidGame = errors.New("invalid game")

// Game is a single chess game. BlackID is nil while waiting for an opponent and for AI games.
type Game struct {
	ID        int64
	WhiteID   *int64
	BlackID   *int64
	Status    Status
	FEN       string
	Moves     []string
	Result    string
	StartedAt time.Time
	EndedAt   *time.Time
	IsVsAI    bool
}

// NewWaitingGame opens a seat for a human opponent.
func NewWaitingGame(whiteID int64, now time.Time) *Game {
	return &Game{
		WhiteID:   &whiteID,
		Status:    StatusWaiting,
		FEN:       StartingFEN,
		Moves:     []string{},
		StartedAt: now.UTC(),
	}
}

// NewAIGame starts an active game against the engine. The requester plays white.
func NewAIGame(whiteID int64, now time.Time) *Game {
	return &Game{
		WhiteID:   &whiteID,
		Status:    StatusActive,
		FEN:       StartingFEN,
		Moves:     []string{},
		StartedAt: now.UTC(),
		IsVsAI:    true,
	}
}

// Ply is the number of half-moves applied so far.
func (g *Game) Ply() int { return len(g.Moves) }

// Validate checks the structural invariants of the record.
func (g *Game) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil game", ErrInvalidGame)
	}
	switch g.Status {
	case StatusWaiting:
		if g.BlackID != nil || g.IsVsAI {
			return fmt.Errorf("%w: waiting game must have no black player and no AI", ErrInvalidGame)
		}
	case StatusActive:
	case StatusFinished:
		if g.Result == "" || g.EndedAt == nil {
			return fmt.Errorf("%w: finished game requires result and end time", ErrInvalidGame)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidGame, g.Status)
	}
	if g.IsVsAI && g.BlackID != nil {
		return fmt.Errorf("%w: AI game cannot have a black player", ErrInvalidGame)
	}
	if g.WhiteID != nil && g.BlackID != nil && *g.WhiteID == *g.BlackID {
		return fmt.Errorf("%w: a user cannot play both sides", ErrInvalidGame)
	}
	return nil
}

// ColorOf reports which side userID plays. In AI games the owner plays white.
func (g *Game) ColorOf(userID int64) (Color, bool) {
	if g.WhiteID != nil && *g.WhiteID == userID {
		return White, true
	}
	if g.BlackID != nil && *g.BlackID == userID {
		return Black, true
	}
	return "", false
}

func (g *Game) IsParticipant(userID int64) bool {
	_, ok := g.ColorOf(userID)
	return ok
}

// Finish moves the game to its terminal state. It is a no-op on finished games.
func (g *Game) Finish(result string, at time.Time) {
	if g.Status == StatusFinished {
		return
	}
	ended := at.UTC()
	g.Status = StatusFinished
	g.Result = result
	g.EndedAt = &ended
}

// Winner returns the winning side, or false for draws and unfinished games.
func (g *Game) Winner() (Color, bool) {
	switch g.Result {
	case ResultWhiteWon:
		return White, true
	case ResultBlackWon:
		return Black, true
	default:
		return "", false
	}
}

func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Moves = append([]string(nil), g.Moves...)
	if g.WhiteID != nil {
		v := *g.WhiteID
		cp.WhiteID = &v
	}
	if g.BlackID != nil {
		v := *g.BlackID
		cp.BlackID = &v
	}
	if g.EndedAt != nil {
		v := *g.EndedAt
		cp.EndedAt = &v
	}
	return &cp
}
