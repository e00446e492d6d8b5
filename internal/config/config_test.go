package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8000" || cfg.DatabaseURL != "sqlite://chess.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TokenTTL != time.Hour || cfg.RatingKFactor != 24 || !cfg.RatingEnabled {
		t.Fatalf("unexpected auth/rating defaults %+v", cfg)
	}
	if cfg.AIEngine != "random" || cfg.Archive.Enabled() {
		t.Fatalf("unexpected engine/archive defaults %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors default %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_ENV", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing secret error")
	}
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load()
	if err != nil || cfg.JWTSecret == "" {
		t.Fatalf("dev must fall back to a local secret: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("TOKEN_TTL_MIN", "5")
	t.Setenv("AI_ENGINE", "NONE")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("RATING_ENABLED", "false")
	t.Setenv("WAITING_GAME_TTL_MIN", "bogus")
	t.Setenv("ARCHIVE_S3_BUCKET", "pgn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenTTL != 5*time.Minute || cfg.AIEngine != "none" || cfg.RatingEnabled {
		t.Fatalf("overrides ignored %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.WaitingGameTTL != 30*time.Minute {
		t.Fatalf("invalid value must keep default, got %v", cfg.WaitingGameTTL)
	}
	if !cfg.Archive.Enabled() || cfg.Archive.Prefix != "games" || cfg.Archive.Region != "auto" {
		t.Fatalf("unexpected archive %+v", cfg.Archive)
	}
}

func TestLoadValidatesEngine(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("AI_ENGINE", "stockfish")
	t.Setenv("STOCKFISH_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatalf("stockfish without path must fail")
	}
	t.Setenv("AI_ENGINE", "magic")
	if _, err := Load(); err == nil {
		t.Fatalf("unknown engine must fail")
	}
}

func TestLoadDotenvIfPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CHESS_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CHESS_DOTENV_PROBE", "")
	os.Unsetenv("CHESS_DOTENV_PROBE")

	if err := LoadDotenvIfPresent(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("CHESS_DOTENV_PROBE"); got != "loaded" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
}
