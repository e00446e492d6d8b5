package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/archive"
	"github.com/park285/chess-platform/internal/auth"
	"github.com/park285/chess-platform/internal/chessbuilder"
	appcfg "github.com/park285/chess-platform/internal/config"
	"github.com/park285/chess-platform/internal/game"
	"github.com/park285/chess-platform/internal/httpapi"
	"github.com/park285/chess-platform/internal/leaderboard"
	"github.com/park285/chess-platform/internal/live"
	"github.com/park285/chess-platform/internal/matchmaking"
	"github.com/park285/chess-platform/internal/msgcat"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/rating"
	"github.com/park285/chess-platform/internal/redisx"
	"github.com/park285/chess-platform/internal/store"
	"github.com/park285/chess-platform/internal/sweeper"
)

func main() {
	if err := appcfg.LoadDotenvIfPresent(); err != nil {
		log.Fatalf("dotenv error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	if cfg.MessagesDir != "" {
		cat, err := msgcat.New(cfg.MessagesDir)
		if err != nil {
			logger.Fatal("messages_load_failed", zap.String("dir", cfg.MessagesDir), zap.Error(err))
		}
		msgcat.SetDefault(cat)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server_failed", zap.Error(err))
	}
}

func run(cfg *appcfg.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	repo := store.NewRepository(db)
	logger.Info("database_ready", zap.String("dialect", string(db.Dialect())))

	// redis는 선택. 없으면 캐시, 로그인 제한, 멀티 인스턴스 fanout이 꺼진다.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisx.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		logger.Info("redis_ready")
	} else {
		logger.Warn("redis_disabled")
	}

	engine, err := chessbuilder.NewEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	authSvc, err := auth.NewService(repo, auth.Config{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	}, auth.NewLoginLimiter(rdb, cfg.LoginMaxAttempts, cfg.LoginWindow))
	if err != nil {
		return err
	}

	board := leaderboard.NewService(repo, rdb, cfg.LeaderboardTTL)
	rater := rating.NewUpdater(repo, rating.Config{Enabled: cfg.RatingEnabled, KFactor: cfg.RatingKFactor})
	rater.OnChange(board.Invalidate)
	authSvc.OnRegistered(board.Invalidate)

	hub := live.NewHub(rdb)
	match := matchmaking.NewManager(repo)

	opts := game.Options{Mover: engine.Mover, Publisher: hub, Rater: rater}
	if cfg.Archive.Enabled() {
		uploader, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		opts.Archiver = uploader
		logger.Info("archive_ready", zap.String("bucket", cfg.Archive.Bucket))
	}
	games := game.NewManager(repo, match, opts)
	match.OnJoined(games.NotifyJoined)

	sweep := sweeper.New(repo, hub, cfg.WaitingGameTTL, cfg.SweepInterval)
	if err := sweep.Start(); err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:           authSvc,
		Games:          games,
		Match:          match,
		Leaderboard:    board,
		Hub:            hub,
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Release:        !cfg.IsDev(),
	})
	srv := httpapi.NewHTTPServer(cfg.HTTPAddr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := sweep.Shutdown(); err != nil {
		logger.Warn("sweeper_shutdown_failed", zap.Error(err))
	}
	games.Wait()
	logger.Info("shutdown_complete")
	return nil
}
