package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppEnv   string
	HTTPAddr string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	TokenTTL  time.Duration

	AIEngine          string // none | random | stockfish | cloud
	StockfishPath     string
	StockfishMoveTime time.Duration
	StockfishPoolSize int
	StockfishPreset   string
	CloudEvalURL      string

	RatingEnabled bool
	RatingKFactor int

	WaitingGameTTL time.Duration
	SweepInterval  time.Duration

	CORSAllowedOrigins []string

	LoginMaxAttempts int
	LoginWindow      time.Duration
	LeaderboardTTL   time.Duration

	// MessagesDir holds YAML files overriding the embedded message catalog.
	MessagesDir string

	Archive ArchiveConfig
}

// ArchiveConfig describes the optional S3-compatible PGN archive.
type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

func (c *AppConfig) IsDev() bool { return strings.EqualFold(c.AppEnv, "dev") }

const devJWTSecret = "dev-insecure-secret"

// LoadDotenvIfPresent loads .env style files that exist. Missing files are skipped.
func LoadDotenvIfPresent(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat dotenv file failed path=%s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load dotenv file failed path=%s: %w", path, err)
		}
	}
	return nil
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		AppEnv:             "prod",
		HTTPAddr:           ":8000",
		DatabaseURL:        "sqlite://chess.db",
		TokenTTL:           60 * time.Minute,
		AIEngine:           "random",
		StockfishMoveTime:  200 * time.Millisecond,
		StockfishPoolSize:  2,
		StockfishPreset:    "level3",
		RatingEnabled:      true,
		RatingKFactor:      24,
		WaitingGameTTL:     30 * time.Minute,
		SweepInterval:      60 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		LoginMaxAttempts:   10,
		LoginWindow:        300 * time.Second,
		LeaderboardTTL:     30 * time.Second,
	}

	if v := env("APP_ENV"); v != "" {
		cfg.AppEnv = v
	}
	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	cfg.RedisURL = env("REDIS_URL")

	cfg.JWTSecret = env("JWT_SECRET")
	if v := envInt("TOKEN_TTL_MIN"); v > 0 {
		cfg.TokenTTL = time.Duration(v) * time.Minute
	}

	if v := strings.ToLower(env("AI_ENGINE")); v != "" {
		cfg.AIEngine = v
	}
	cfg.StockfishPath = env("STOCKFISH_PATH")
	if v := envInt("STOCKFISH_MOVETIME_MS"); v > 0 {
		cfg.StockfishMoveTime = time.Duration(v) * time.Millisecond
	}
	if v := envInt("STOCKFISH_POOL_SIZE"); v > 0 {
		cfg.StockfishPoolSize = v
	}
	if v := env("STOCKFISH_PRESET"); v != "" {
		cfg.StockfishPreset = v
	}
	cfg.CloudEvalURL = env("CLOUD_EVAL_URL")

	if v := env("RATING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RatingEnabled = b
		}
	}
	if v := envInt("RATING_K_FACTOR"); v > 0 {
		cfg.RatingKFactor = v
	}

	if v := envInt("WAITING_GAME_TTL_MIN"); v > 0 {
		cfg.WaitingGameTTL = time.Duration(v) * time.Minute
	}
	if v := envInt("SWEEP_INTERVAL_SEC"); v > 0 {
		cfg.SweepInterval = time.Duration(v) * time.Second
	}

	if v := env("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	if v := envInt("LOGIN_MAX_ATTEMPTS"); v > 0 {
		cfg.LoginMaxAttempts = v
	}
	if v := envInt("LOGIN_WINDOW_SEC"); v > 0 {
		cfg.LoginWindow = time.Duration(v) * time.Second
	}
	if v := envInt("LEADERBOARD_CACHE_SEC"); v > 0 {
		cfg.LeaderboardTTL = time.Duration(v) * time.Second
	}

	cfg.MessagesDir = env("MESSAGES_DIR")

	cfg.Archive = ArchiveConfig{
		Bucket:    env("ARCHIVE_S3_BUCKET"),
		Region:    env("ARCHIVE_S3_REGION"),
		Endpoint:  env("ARCHIVE_S3_ENDPOINT"),
		AccessKey: env("ARCHIVE_S3_ACCESS_KEY"),
		SecretKey: env("ARCHIVE_S3_SECRET_KEY"),
		Prefix:    env("ARCHIVE_S3_PREFIX"),
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "auto"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "games"
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return nil, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = devJWTSecret
	}
	switch cfg.AIEngine {
	case "none", "random", "stockfish", "cloud":
	default:
		return nil, fmt.Errorf("AI_ENGINE must be one of none, random, stockfish, cloud: %q", cfg.AIEngine)
	}
	if cfg.AIEngine == "stockfish" && cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required when AI_ENGINE=stockfish")
	}
	if cfg.AIEngine == "cloud" && cfg.CloudEvalURL == "" {
		return nil, errors.New("CLOUD_EVAL_URL is required when AI_ENGINE=cloud")
	}

	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func envInt(key string) int {
	v := env(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
