package game

import (
	"context"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/rules"
	"github.com/park285/chess-platform/pkg/chessdto"
)

const pgnEvent = "Online casual game"

// GetGame returns the full view of a game including the per-ply history.
func (m *Manager) GetGame(ctx context.Context, gameID int64) (*chessdto.GameDetail, error) {
	g, err := m.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	names, err := m.namesFor(ctx, g)
	if err != nil {
		return nil, err
	}
	board, err := m.rules.Replay(g.Moves)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	history := make([]chessdto.PlyEntry, 0, g.Ply())
	for _, p := range board.History() {
		history = append(history, chessdto.PlyEntry{Ply: p.Number, UCI: p.UCI, SAN: p.SAN, FEN: p.FEN})
	}
	eco, title := board.Opening()
	return &chessdto.GameDetail{
		GameSummary: summaryOf(g, names),
		Turn:        string(board.Turn()),
		Moves:       append([]string{}, g.Moves...),
		History:     history,
		ECO:         eco,
		Opening:     title,
	}, nil
}

// ListHistory lists the games userID played on either side, newest first.
func (m *Manager) ListHistory(ctx context.Context, userID int64) ([]chessdto.GameSummary, error) {
	games, err := m.repo.GamesByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	names, err := m.namesFor(ctx, games...)
	if err != nil {
		return nil, err
	}
	out := make([]chessdto.GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, summaryOf(g, names))
	}
	return out, nil
}

// LegalMoves lists the moves available to the side to move. Games that are not active have none.
func (m *Manager) LegalMoves(ctx context.Context, gameID int64) (chessdto.LegalMovesResponse, error) {
	g, err := m.load(ctx, gameID)
	if err != nil {
		return chessdto.LegalMovesResponse{}, err
	}
	moves := []string{}
	if g.Status == domain.StatusActive {
		legal, err := m.rules.LegalMoves(g.FEN)
		if err != nil {
			return chessdto.LegalMovesResponse{}, apperr.Internal(err)
		}
		moves = append(moves, legal...)
	}
	board, err := rules.FromFEN(g.FEN)
	if err != nil {
		return chessdto.LegalMovesResponse{}, apperr.Internal(err)
	}
	return chessdto.LegalMovesResponse{
		GameID: g.ID,
		FEN:    g.FEN,
		Turn:   string(board.Turn()),
		Moves:  moves,
	}, nil
}

// PGN exports the game in portable game notation.
func (m *Manager) PGN(ctx context.Context, gameID int64) (string, error) {
	g, err := m.load(ctx, gameID)
	if err != nil {
		return "", err
	}
	names, err := m.namesFor(ctx, g)
	if err != nil {
		return "", err
	}
	return m.pgnOf(g, names)
}

// Snapshot is the event sent to a live subscriber before any update.
func (m *Manager) Snapshot(ctx context.Context, gameID int64) (domain.GameEvent, error) {
	g, err := m.load(ctx, gameID)
	if err != nil {
		return domain.GameEvent{}, err
	}
	ev := domain.GameEvent{
		Type:   domain.EventSnapshot,
		GameID: g.ID,
		Ply:    g.Ply(),
		FEN:    g.FEN,
		Status: g.Status,
		Result: g.Result,
		At:     m.now().UTC(),
	}
	if n := g.Ply(); n > 0 {
		ev.Move = g.Moves[n-1]
	}
	return ev, nil
}

func (m *Manager) pgnOf(g *domain.Game, names map[int64]string) (string, error) {
	board, err := m.rules.Replay(g.Moves)
	if err != nil {
		return "", apperr.Internal(err)
	}
	white, black := seatLabels(g, names)
	header := rules.PGNHeader{
		Event:  pgnEvent,
		Date:   g.StartedAt,
		White:  white,
		Black:  black,
		Result: g.Result,
	}
	if outcome, done := board.Outcome(); done {
		header.Termination = outcome.Method
	} else if g.Result == domain.ResultAborted {
		header.Termination = "abandoned"
	}
	return board.PGN(header), nil
}

func (m *Manager) namesFor(ctx context.Context, games ...*domain.Game) (map[int64]string, error) {
	var ids []int64
	for _, g := range games {
		if g.WhiteID != nil {
			ids = append(ids, *g.WhiteID)
		}
		if g.BlackID != nil {
			ids = append(ids, *g.BlackID)
		}
	}
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	names, err := m.repo.UsernamesByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return names, nil
}

// seatLabels resolves both sides to usernames. The engine side is "AI" and an open seat is "TBD".
func seatLabels(g *domain.Game, names map[int64]string) (string, string) {
	white := domain.LabelAI
	if g.WhiteID != nil {
		if name, ok := names[*g.WhiteID]; ok {
			white = name
		}
	}
	var black string
	switch {
	case g.IsVsAI:
		black = domain.LabelAI
	case g.BlackID == nil:
		black = domain.LabelPending
	default:
		black = names[*g.BlackID]
		if black == "" {
			black = domain.LabelPending
		}
	}
	return white, black
}

func summaryOf(g *domain.Game, names map[int64]string) chessdto.GameSummary {
	white, black := seatLabels(g, names)
	return chessdto.GameSummary{
		ID:        g.ID,
		White:     white,
		Black:     black,
		Status:    string(g.Status),
		Result:    resultOf(g),
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
		FEN:       g.FEN,
		IsVsAI:    g.IsVsAI,
	}
}

func resultOf(g *domain.Game) *string {
	if g.Result == "" {
		return nil
	}
	r := g.Result
	return &r
}

