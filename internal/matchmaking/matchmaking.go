package matchmaking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/store"
)

// Status is the outcome of a matchmaking request.
type Status string

const (
	StatusMatched Status = "matched"
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
)

const (
	candidateBatch = 5
	claimRounds    = 3
)

// Result carries the game the requester ended up in.
type Result struct {
	Status Status
	Game   *domain.Game
}

// Manager pairs humans through waiting games and starts AI games.
type Manager struct {
	repo     store.Repository
	now      func() time.Time
	onJoined func(context.Context, *domain.Game)
}

func NewManager(repo store.Repository) *Manager {
	return &Manager{repo: repo, now: time.Now}
}

// OnJoined registers a callback fired after a waiting game was claimed.
func (m *Manager) OnJoined(fn func(context.Context, *domain.Game)) { m.onJoined = fn }

// FindMatch seats the requester as black in the oldest claimable waiting game.
// Without one it returns the requester's own waiting game, or opens a new one.
func (m *Manager) FindMatch(ctx context.Context, requesterID int64) (Result, error) {
	for round := 0; round < claimRounds; round++ {
		candidates, err := m.repo.WaitingGames(ctx, requesterID, candidateBatch)
		if err != nil {
			return Result{}, apperr.Internal(err)
		}
		if len(candidates) == 0 {
			break
		}
		for _, c := range candidates {
			ok, err := m.repo.ClaimWaitingGame(ctx, c.ID, requesterID)
			if err != nil {
				return Result{}, apperr.Internal(err)
			}
			if !ok {
				obslog.L().Debug("matchmaking_claim_lost", zap.Int64("game_id", c.ID), zap.Int64("user_id", requesterID))
				continue
			}
			g, err := m.repo.GameByID(ctx, c.ID)
			if err != nil {
				return Result{}, apperr.Internal(err)
			}
			obslog.L().Info("matchmaking_matched",
				zap.Int64("game_id", g.ID),
				zap.Int64("white_id", *g.WhiteID),
				zap.Int64("black_id", requesterID),
			)
			if m.onJoined != nil {
				m.onJoined(ctx, g)
			}
			return Result{Status: StatusMatched, Game: g}, nil
		}
	}

	own, err := m.repo.WaitingGameByWhite(ctx, requesterID)
	switch {
	case err == nil:
		return Result{Status: StatusWaiting, Game: own}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Result{}, apperr.Internal(err)
	}

	g, err := m.repo.CreateGame(ctx, domain.NewWaitingGame(requesterID, m.now()))
	if err != nil {
		return Result{}, apperr.Internal(err)
	}
	obslog.L().Info("matchmaking_waiting", zap.Int64("game_id", g.ID), zap.Int64("user_id", requesterID))
	return Result{Status: StatusWaiting, Game: g}, nil
}

// PlayWithAI starts an active game with the requester as white against the engine.
func (m *Manager) PlayWithAI(ctx context.Context, requesterID int64) (Result, error) {
	g, err := m.repo.CreateGame(ctx, domain.NewAIGame(requesterID, m.now()))
	if err != nil {
		return Result{}, apperr.Internal(err)
	}
	obslog.L().Info("ai_game_created", zap.Int64("game_id", g.ID), zap.Int64("user_id", requesterID))
	return Result{Status: StatusActive, Game: g}, nil
}
