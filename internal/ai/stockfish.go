package ai

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/ai/uci"
	"github.com/park285/chess-platform/internal/obslog"
)

// Level is a named engine strength. MultiPV above one makes the engine report that many lines,
// and the reply is drawn from the first PrimaryChoices of them by Weights.
type Level struct {
	Name       string
	SkillLevel int
	Elo        int
	HashMB     int
	Depth      int

	MultiPV        int
	PrimaryChoices int
	Weights        []float64
	EvalNoise      int
}

var levels = []Level{
	{Name: "level1", SkillLevel: 0, HashMB: 16, Depth: 1, MultiPV: 5, PrimaryChoices: 3, Weights: []float64{0.5, 0.3, 0.2}, EvalNoise: 80},
	{Name: "level2", SkillLevel: 2, HashMB: 16, Depth: 3, MultiPV: 5, PrimaryChoices: 3, Weights: []float64{0.6, 0.3, 0.1}, EvalNoise: 60},
	{Name: "level3", SkillLevel: 4, HashMB: 16, Depth: 5, MultiPV: 5, PrimaryChoices: 3, Weights: []float64{0.7, 0.2, 0.1}, EvalNoise: 45},
	{Name: "level4", SkillLevel: 6, Elo: 1350, HashMB: 32, Depth: 8, MultiPV: 5, PrimaryChoices: 3, Weights: []float64{0.65, 0.25, 0.1}, EvalNoise: 30},
	{Name: "level5", SkillLevel: 9, Elo: 1600, HashMB: 32, Depth: 10, MultiPV: 5, PrimaryChoices: 3, Weights: []float64{0.7, 0.2, 0.1}, EvalNoise: 25},
	{Name: "level6", SkillLevel: 12, Elo: 1900, HashMB: 64, Depth: 12, MultiPV: 2, PrimaryChoices: 2, Weights: []float64{0.8, 0.2}, EvalNoise: 10},
	{Name: "level7", SkillLevel: 16, Elo: 2200, HashMB: 64, Depth: 14, MultiPV: 2, PrimaryChoices: 2, Weights: []float64{0.85, 0.15}, EvalNoise: 5},
	{Name: "level8", SkillLevel: 20, HashMB: 128, MultiPV: 1, PrimaryChoices: 1, Weights: []float64{1}},
}

// LevelByName resolves a level; unknown names fall back to level3.
func LevelByName(name string) Level {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range levels {
		if l.Name == name {
			return l
		}
	}
	return levels[2]
}

// Stockfish asks a pooled UCI engine for candidate lines and picks one by level.
type Stockfish struct {
	pool   *uci.Pool
	limits uci.Limits
	level  Level

	mu  sync.Mutex
	rng *rand.Rand
}

func NewStockfish(binaryPath string, level Level, moveTime time.Duration, poolSize int) (*Stockfish, error) {
	if moveTime <= 0 {
		moveTime = 200 * time.Millisecond
	}
	if err := level.validatePicker(); err != nil {
		return nil, err
	}
	pool, err := uci.NewPool(binaryPath, uci.Options{
		Threads:    1,
		SkillLevel: level.SkillLevel,
		HashMB:     level.HashMB,
		Elo:        level.Elo,
		MultiPV:    level.MultiPV,
	}, poolSize)
	if err != nil {
		return nil, err
	}
	seed := uint64(time.Now().UnixNano())
	return &Stockfish{
		pool:   pool,
		limits: uci.Limits{Depth: level.Depth, MoveTimeMillis: int(moveTime.Milliseconds())},
		level:  level,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (s *Stockfish) Name() string { return "stockfish" }

func (s *Stockfish) BestMove(ctx context.Context, moves []string) (string, error) {
	session, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire engine: %w", err)
	}
	res, err := session.Search(ctx, moves, s.limits)
	s.pool.Release(session, err)
	if err != nil {
		return "", err
	}
	if res.BestMove == "" {
		return "", ErrNoMove
	}
	candidates := candidatesFrom(res.Lines)
	if len(candidates) < 2 {
		return res.BestMove, nil
	}

	s.mu.Lock()
	choice, err := SelectCandidate(s.level, candidates, s.rng)
	s.mu.Unlock()
	if err != nil {
		return res.BestMove, nil
	}
	obslog.L().Debug("ai_candidate_selected",
		zap.String("level", s.level.Name),
		zap.String("move", choice.Move),
		zap.String("best", res.BestMove),
		zap.Int("eval_cp", choice.EvalCP),
		zap.Int("candidates", len(candidates)),
	)
	return choice.Move, nil
}

func (s *Stockfish) Close() error { return s.pool.Close() }
