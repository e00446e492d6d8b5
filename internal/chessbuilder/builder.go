package chessbuilder

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/ai"
	"github.com/park285/chess-platform/internal/config"
)

// Engine is the configured AI opponent plus its shutdown hook.
type Engine struct {
	Mover ai.Mover // nil when AI_ENGINE=none
	close func() error
}

func (e *Engine) Close() error {
	if e == nil || e.close == nil {
		return nil
	}
	return e.close()
}

// NewEngine builds the AI opponent selected by AI_ENGINE. Stockfish and cloud engines
// fall back to random legal moves when they fail.
func NewEngine(cfg *config.AppConfig, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	random := ai.NewRandom(uint64(time.Now().UnixNano()))

	switch cfg.AIEngine {
	case "none":
		logger.Info("ai_engine_disabled")
		return &Engine{}, nil
	case "random", "":
		logger.Info("ai_engine_ready", zap.String("engine", "random"))
		return &Engine{Mover: random}, nil
	case "stockfish":
		level := ai.LevelByName(cfg.StockfishPreset)
		sf, err := ai.NewStockfish(cfg.StockfishPath, level, cfg.StockfishMoveTime, cfg.StockfishPoolSize)
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		logger.Info("ai_engine_ready",
			zap.String("engine", "stockfish"),
			zap.String("level", level.Name),
			zap.Int("pool_size", cfg.StockfishPoolSize),
		)
		return &Engine{Mover: ai.Fallback{Primary: sf, Secondary: random}, close: sf.Close}, nil
	case "cloud":
		cloud := ai.NewCloud(cfg.CloudEvalURL, 3*time.Second)
		logger.Info("ai_engine_ready", zap.String("engine", "cloud"), zap.String("url", cfg.CloudEvalURL))
		return &Engine{Mover: ai.Fallback{Primary: cloud, Secondary: random}}, nil
	default:
		return nil, fmt.Errorf("unknown AI_ENGINE %q", cfg.AIEngine)
	}
}
