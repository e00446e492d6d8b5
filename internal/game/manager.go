// Package game owns the lifecycle of a chess game: creation, moves, and read views.
package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/ai"
	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/matchmaking"
	"github.com/park285/chess-platform/internal/msgcat"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/rules"
	"github.com/park285/chess-platform/internal/store"
	"github.com/park285/chess-platform/pkg/chessdto"
)

const (
	maxMoveAttempts = 3
	engineTimeout   = 10 * time.Second
	archiveTimeout  = 30 * time.Second
)

// Publisher broadcasts live game events.
type Publisher interface {
	Publish(ctx context.Context, ev domain.GameEvent) error
}

// Rater records the outcome of a finished game.
type Rater interface {
	Apply(ctx context.Context, g *domain.Game) ([]domain.StatDelta, error)
}

// Archiver stores the PGN of a finished game.
type Archiver interface {
	Upload(ctx context.Context, g *domain.Game, white, black, pgn string) (string, error)
}

// Options are the optional collaborators of a Manager. Nil fields disable the feature.
type Options struct {
	Mover     ai.Mover
	Publisher Publisher
	Rater     Rater
	Archiver  Archiver
}

type Manager struct {
	repo     store.Repository
	match    *matchmaking.Manager
	rules    rules.Engine
	mover    ai.Mover
	pub      Publisher
	rater    Rater
	archiver Archiver
	now      func() time.Time

	background sync.WaitGroup
}

func NewManager(repo store.Repository, match *matchmaking.Manager, opts Options) *Manager {
	return &Manager{
		repo:     repo,
		match:    match,
		rules:    rules.Standard{},
		mover:    opts.Mover,
		pub:      opts.Publisher,
		rater:    opts.Rater,
		archiver: opts.Archiver,
		now:      time.Now,
	}
}

// Wait blocks until background archive uploads have finished.
func (m *Manager) Wait() { m.background.Wait() }

// CreateGame starts an AI game, or pairs the requester through matchmaking.
func (m *Manager) CreateGame(ctx context.Context, requesterID int64, vsAI bool) (chessdto.GameSummary, error) {
	var (
		res matchmaking.Result
		err error
	)
	if vsAI {
		res, err = m.match.PlayWithAI(ctx, requesterID)
	} else {
		res, err = m.match.FindMatch(ctx, requesterID)
	}
	if err != nil {
		return chessdto.GameSummary{}, err
	}
	names, err := m.namesFor(ctx, res.Game)
	if err != nil {
		return chessdto.GameSummary{}, err
	}
	return summaryOf(res.Game, names), nil
}

// NotifyJoined announces that a waiting game got its second player.
func (m *Manager) NotifyJoined(ctx context.Context, g *domain.Game) {
	m.publish(ctx, domain.GameEvent{
		Type:   domain.EventJoined,
		GameID: g.ID,
		Ply:    g.Ply(),
		FEN:    g.FEN,
		Status: g.Status,
		At:     m.now().UTC(),
	})
}

// ApplyMove validates and applies from+to[+promotion] for the requester. Rejected moves
// are reported through MoveResponse.Valid and leave the game untouched.
func (m *Manager) ApplyMove(ctx context.Context, gameID, requesterID int64, from, to, promotion string) (chessdto.MoveResponse, error) {
	raw := moveCode(from, to, promotion)

	for attempt := 0; attempt < maxMoveAttempts; attempt++ {
		g, err := m.load(ctx, gameID)
		if err != nil {
			return chessdto.MoveResponse{}, err
		}
		color, ok := g.ColorOf(requesterID)
		if !ok {
			return chessdto.MoveResponse{}, apperr.New(apperr.KindForbidden, msgcat.T("game.forbidden"))
		}
		switch g.Status {
		case domain.StatusFinished:
			return rejected(g, raw, "move.finished"), nil
		case domain.StatusWaiting:
			return rejected(g, raw, "move.waiting"), nil
		}
		code, err := rules.ParseMove(raw)
		if err != nil {
			return rejected(g, raw, "move.invalid_format"), nil
		}

		board, err := m.rules.Replay(g.Moves)
		if err != nil {
			return chessdto.MoveResponse{}, apperr.Internal(err)
		}
		next := g.Clone()

		// 이전 요청에서 엔진 응수가 실패했다면 먼저 두고 다시 읽는다
		if m.enginePlays(g) && board.Turn() == domain.Black {
			if reply, ok := m.engineReply(ctx, g.ID, board); ok {
				m.record(next, board, reply)
				if err := m.commit(ctx, g, next, []rules.Ply{reply}); err != nil && !errors.Is(err, store.ErrVersionConflict) {
					return chessdto.MoveResponse{}, err
				}
				continue
			}
		}

		if !(g.IsVsAI && m.mover == nil) && board.Turn() != color {
			return rejected(g, raw, "move.not_your_turn"), nil
		}
		ply, err := board.Play(code)
		switch {
		case errors.Is(err, rules.ErrInvalidFormat):
			return rejected(g, raw, "move.invalid_format"), nil
		case err != nil:
			return rejected(g, code, "move.illegal"), nil
		}
		m.record(next, board, ply)
		plies := []rules.Ply{ply}

		var engineMove string
		if next.Status == domain.StatusActive && m.enginePlays(g) {
			if reply, ok := m.engineReply(ctx, g.ID, board); ok {
				m.record(next, board, reply)
				plies = append(plies, reply)
				engineMove = reply.UCI
			}
		}

		err = m.commit(ctx, g, next, plies)
		if errors.Is(err, store.ErrVersionConflict) {
			obslog.L().Info("move_conflict_retry",
				zap.Int64("game_id", g.ID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return chessdto.MoveResponse{}, err
		}

		obslog.L().Info("move_applied",
			zap.Int64("game_id", next.ID),
			zap.Int64("user_id", requesterID),
			zap.String("uci", ply.UCI),
			zap.String("engine_uci", engineMove),
			zap.Int("ply", next.Ply()),
			zap.String("status", string(next.Status)),
			zap.String("result", next.Result),
		)

		return chessdto.MoveResponse{
			MoveUCI: ply.UCI,
			MoveSAN: ply.SAN,
			FEN:     next.FEN,
			Valid:   true,
			Message: msgcat.T("move.executed"),
			Status:  string(next.Status),
			Result:  resultOf(next),
			AIMove:  engineMove,
		}, nil
	}
	return chessdto.MoveResponse{}, apperr.New(apperr.KindConflict, msgcat.T("game.conflict"))
}

// commit persists next if nobody moved since g was read, then announces and settles it.
// It returns store.ErrVersionConflict unwrapped so callers can retry.
func (m *Manager) commit(ctx context.Context, g, next *domain.Game, plies []rules.Ply) error {
	err := m.repo.UpdateGameIfPly(ctx, next, g.Ply(), g.Status)
	if errors.Is(err, store.ErrVersionConflict) {
		return store.ErrVersionConflict
	}
	if err != nil {
		return apperr.Internal(err)
	}
	m.announce(ctx, next, plies)
	if next.Status == domain.StatusFinished {
		m.settle(ctx, next)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, gameID int64) (*domain.Game, error) {
	g, err := m.repo.GameByID(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, msgcat.T("game.not_found"))
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return g, nil
}

func (m *Manager) enginePlays(g *domain.Game) bool {
	return g.IsVsAI && m.mover != nil
}

// record appends ply to next and finishes it when the board reached a terminal position.
func (m *Manager) record(next *domain.Game, board *rules.Board, ply rules.Ply) {
	next.Moves = append(next.Moves, ply.UCI)
	next.FEN = ply.FEN
	if outcome, done := board.Outcome(); done {
		next.Finish(outcome.Result, m.now())
	}
}

func (m *Manager) engineReply(ctx context.Context, gameID int64, board *rules.Board) (rules.Ply, bool) {
	if _, done := board.Outcome(); done {
		return rules.Ply{}, false
	}
	ectx, cancel := context.WithTimeout(ctx, engineTimeout)
	defer cancel()

	mv, err := m.mover.BestMove(ectx, board.Moves())
	if err != nil {
		obslog.L().Warn("engine_reply_failed", zap.Int64("game_id", gameID), zap.String("engine", m.mover.Name()), zap.Error(err))
		return rules.Ply{}, false
	}
	ply, err := board.Play(mv)
	if err != nil {
		obslog.L().Warn("engine_reply_illegal", zap.Int64("game_id", gameID), zap.String("uci", mv), zap.Error(err))
		return rules.Ply{}, false
	}
	return ply, true
}

func (m *Manager) announce(ctx context.Context, g *domain.Game, plies []rules.Ply) {
	at := m.now().UTC()
	for _, p := range plies {
		m.publish(ctx, domain.GameEvent{
			Type:   domain.EventMove,
			GameID: g.ID,
			Move:   p.UCI,
			SAN:    p.SAN,
			Ply:    p.Number,
			FEN:    p.FEN,
			Status: domain.StatusActive,
			At:     at,
		})
	}
	if g.Status == domain.StatusFinished {
		m.publish(ctx, domain.GameEvent{
			Type:   domain.EventFinished,
			GameID: g.ID,
			Ply:    g.Ply(),
			FEN:    g.FEN,
			Status: g.Status,
			Result: g.Result,
			At:     at,
		})
	}
}

func (m *Manager) publish(ctx context.Context, ev domain.GameEvent) {
	if m.pub == nil {
		return
	}
	if err := m.pub.Publish(ctx, ev); err != nil {
		obslog.L().Warn("game_event_publish_failed",
			zap.Int64("game_id", ev.GameID),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// settle updates ratings and schedules the PGN upload of a finished game.
func (m *Manager) settle(ctx context.Context, g *domain.Game) {
	if m.rater != nil {
		if _, err := m.rater.Apply(ctx, g); err != nil {
			obslog.L().Error("rating_update_failed", zap.Int64("game_id", g.ID), zap.Error(err))
		}
	}
	if m.archiver == nil {
		return
	}
	snapshot := g.Clone()
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		actx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := m.archive(actx, snapshot); err != nil {
			obslog.L().Warn("game_archive_failed", zap.Int64("game_id", snapshot.ID), zap.Error(err))
		}
	}()
}

func (m *Manager) archive(ctx context.Context, g *domain.Game) error {
	names, err := m.namesFor(ctx, g)
	if err != nil {
		return err
	}
	pgn, err := m.pgnOf(g, names)
	if err != nil {
		return err
	}
	white, black := seatLabels(g, names)
	_, err = m.archiver.Upload(ctx, g, white, black, pgn)
	return err
}

// moveCode joins the request fields. Squares are case sensitive; the promotion piece may be written as in SAN.
func moveCode(from, to, promotion string) string {
	return strings.TrimSpace(from) + strings.TrimSpace(to) + strings.ToLower(strings.TrimSpace(promotion))
}

func rejected(g *domain.Game, code, key string) chessdto.MoveResponse {
	return chessdto.MoveResponse{
		MoveUCI: code,
		FEN:     g.FEN,
		Valid:   false,
		Message: msgcat.T(key),
		Status:  string(g.Status),
		Result:  resultOf(g),
	}
}
