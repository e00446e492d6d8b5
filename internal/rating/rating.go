package rating

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/store"
)

const defaultKFactor = 24

type Config struct {
	Enabled bool
	KFactor int
}

// Updater applies win/loss/draw counters and Elo changes once a game finishes.
type Updater struct {
	repo     store.Repository
	enabled  bool
	k        float64
	onChange []func(context.Context)
}

func NewUpdater(repo store.Repository, cfg Config) *Updater {
	k := cfg.KFactor
	if k <= 0 {
		k = defaultKFactor
	}
	return &Updater{repo: repo, enabled: cfg.Enabled, k: float64(k)}
}

// OnChange registers a hook run after stats were written.
func (u *Updater) OnChange(fn func(context.Context)) {
	if u != nil && fn != nil {
		u.onChange = append(u.onChange, fn)
	}
}

// Apply records the result of a finished game. Aborted and unfinished games are ignored.
func (u *Updater) Apply(ctx context.Context, g *domain.Game) ([]domain.StatDelta, error) {
	if u == nil || !u.enabled || g == nil || g.Status != domain.StatusFinished {
		return nil, nil
	}
	score, ok := whiteScore(g.Result)
	if !ok {
		return nil, nil
	}

	var deltas []domain.StatDelta
	switch {
	case g.IsVsAI:
		if g.WhiteID == nil {
			return nil, nil
		}
		deltas = []domain.StatDelta{counterDelta(*g.WhiteID, score)}
	case g.WhiteID != nil && g.BlackID != nil:
		white, err := u.repo.UserByID(ctx, *g.WhiteID)
		if err != nil {
			return nil, fmt.Errorf("load white: %w", err)
		}
		black, err := u.repo.UserByID(ctx, *g.BlackID)
		if err != nil {
			return nil, fmt.Errorf("load black: %w", err)
		}
		deltas = PairDeltas(white, black, score, u.k)
	default:
		return nil, nil
	}

	if err := u.repo.ApplyStatDeltas(ctx, deltas); err != nil {
		return nil, err
	}
	for _, d := range deltas {
		obslog.L().Info("rating_updated",
			zap.Int64("game_id", g.ID),
			zap.Int64("user_id", d.UserID),
			zap.Int("elo_delta", d.Elo),
		)
	}
	for _, fn := range u.onChange {
		fn(ctx)
	}
	return deltas, nil
}

// PairDeltas computes both players' changes for a human game. score is white's score.
func PairDeltas(white, black *domain.User, score, k float64) []domain.StatDelta {
	wd := counterDelta(white.ID, score)
	wd.Elo = EloChange(white.Elo, black.Elo, score, k)
	bd := counterDelta(black.ID, 1-score)
	bd.Elo = EloChange(black.Elo, white.Elo, 1-score, k)
	return []domain.StatDelta{wd, bd}
}

// EloChange is the rounded rating change for a player scoring score against opp.
func EloChange(rating, opp int, score, k float64) int {
	expected := 1 / (1 + math.Pow(10, float64(opp-rating)/400))
	return int(math.Round(k * (score - expected)))
}

func counterDelta(userID int64, score float64) domain.StatDelta {
	d := domain.StatDelta{UserID: userID}
	switch score {
	case 1:
		d.Wins = 1
	case 0:
		d.Losses = 1
	default:
		d.Draws = 1
	}
	return d
}

func whiteScore(result string) (float64, bool) {
	switch result {
	case domain.ResultWhiteWon:
		return 1, true
	case domain.ResultBlackWon:
		return 0, true
	case domain.ResultDraw:
		return 0.5, true
	default:
		return 0, false
	}
}
