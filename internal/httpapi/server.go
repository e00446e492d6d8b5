// Package httpapi exposes the chess platform over REST and websockets.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/auth"
	"github.com/park285/chess-platform/internal/game"
	"github.com/park285/chess-platform/internal/leaderboard"
	"github.com/park285/chess-platform/internal/live"
	"github.com/park285/chess-platform/internal/matchmaking"
)

// Deps are the services behind the handlers.
type Deps struct {
	Auth        *auth.Service
	Games       *game.Manager
	Match       *matchmaking.Manager
	Leaderboard *leaderboard.Service
	Hub         *live.Hub
	Logger      *zap.Logger

	AllowedOrigins []string
	Release        bool
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}

	engine := gin.New()
	engine.Use(RequestID())
	engine.Use(Recovery(d.Logger))
	engine.Use(AccessLog(d.Logger))
	engine.Use(cors.New(corsConfig(d.AllowedOrigins)))
	engine.Use(newGzipMiddleware())

	h := &handler{Deps: d}
	requireUser := RequireUser(d.Auth)

	engine.GET("/", h.health)

	users := engine.Group("/users")
	users.POST("/register", h.register)
	users.POST("/login", h.login)
	users.GET("/me", requireUser, h.me)
	users.GET("/leaderboard", h.userLeaderboard)

	games := engine.Group("/games")
	games.GET("/:id/board.png", h.boardImage)
	games.GET("/:id/ws", h.liveFeed)

	authed := games.Group("", requireUser)
	authed.POST("", h.createGame)
	authed.POST("/", h.createGame)
	authed.POST("/move", h.move)
	authed.GET("/history/me", h.history)
	authed.GET("/leaderboard", h.gameLeaderboard)
	authed.GET("/:id", h.getGame)
	authed.GET("/:id/legal-moves", h.legalMoves)
	authed.GET("/:id/pgn", h.pgn)

	mm := engine.Group("/matchmaking", requireUser)
	mm.POST("/find", h.findMatch)
	mm.POST("/ai", h.playWithAI)

	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func newGzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(func(c *gin.Context) bool {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			return false
		}
		// websocket upgrade와 PNG는 압축 제외
		path := c.Request.URL.Path
		if path == "/" || strings.HasSuffix(path, "/ws") || strings.HasSuffix(path, ".png") {
			return false
		}
		return true
	}))
}

// NewHTTPServer wraps the router with the server timeouts.
func NewHTTPServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
