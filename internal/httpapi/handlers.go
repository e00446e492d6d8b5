package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/matchmaking"
	"github.com/park285/chess-platform/internal/msgcat"
	"github.com/park285/chess-platform/internal/render"
	"github.com/park285/chess-platform/pkg/chessdto"
)

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, chessdto.MessageResponse{Message: msgcat.T("health.ok")})
}

func (h *handler) register(c *gin.Context) {
	var req chessdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	u, err := h.Auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userOut(u))
}

// login accepts the OAuth2 password form as well as a JSON body.
func (h *handler) login(c *gin.Context) {
	var req chessdto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		writeBindError(c, err)
		return
	}
	u, err := h.Auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	tok, err := h.Auth.IssueToken(u.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chessdto.Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType})
}

func (h *handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userOut(currentUser(c)))
}

func (h *handler) userLeaderboard(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	users, err := h.Leaderboard.TopProfiles(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]chessdto.UserOut, 0, len(users))
	for _, u := range users {
		out = append(out, userOut(u))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) gameLeaderboard(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	entries, err := h.Leaderboard.TopN(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]chessdto.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, chessdto.LeaderboardEntry{
			Username: e.Username,
			Elo:      e.Elo,
			Wins:     e.Wins,
			Losses:   e.Losses,
			Draws:    e.Draws,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) createGame(c *gin.Context) {
	var req chessdto.GameStartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBindError(c, err)
		return
	}
	summary, err := h.Games.CreateGame(c.Request.Context(), currentUser(c).ID, req.VsAI)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) move(c *gin.Context) {
	var req chessdto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	res, err := h.Games.ApplyMove(c.Request.Context(), req.GameID, currentUser(c).ID, req.FromSquare, req.ToSquare, req.Promotion)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) getGame(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	detail, err := h.Games.GetGame(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handler) legalMoves(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	res, err := h.Games.LegalMoves(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) pgn(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	text, err := h.Games.PGN(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="game-%d.pgn"`, id))
	c.Data(http.StatusOK, "application/x-chess-pgn", []byte(text))
}

func (h *handler) boardImage(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	size := 0
	if raw := c.Query("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeBindError(c, fmt.Errorf("size must be an integer"))
			return
		}
		size = v
	}
	snap, err := h.Games.Snapshot(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	img, err := render.PNG(c.Request.Context(), snap.FEN, render.Options{
		SquareSize: size,
		LastMove:   snap.Move,
		Flip:       c.Query("flip") == "true" || c.Query("flip") == "1",
	})
	if err != nil {
		writeError(c, apperr.Internal(err))
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", img)
}

func (h *handler) liveFeed(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	// 없는 게임은 업그레이드 전에 404
	if _, err := h.Games.Snapshot(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.Hub.ServeWS(c.Writer, c.Request, id, func(ctx context.Context) (domain.GameEvent, error) {
		return h.Games.Snapshot(ctx, id)
	}, h.AllowedOrigins)
}

func (h *handler) history(c *gin.Context) {
	list, err := h.Games.ListHistory(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) findMatch(c *gin.Context) {
	res, err := h.Match.FindMatch(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	key := "matchmaking.waiting"
	if res.Status == matchmaking.StatusMatched {
		key = "matchmaking.matched"
	}
	c.JSON(http.StatusOK, matchResponse(res, key))
}

func (h *handler) playWithAI(c *gin.Context) {
	res, err := h.Match.PlayWithAI(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, matchResponse(res, "matchmaking.ai"))
}

func matchResponse(res matchmaking.Result, key string) chessdto.MatchmakeResponse {
	id := res.Game.ID
	return chessdto.MatchmakeResponse{
		Status:  string(res.Status),
		GameID:  &id,
		Message: msgcat.Tf(key, map[string]any{"GameID": id}),
	}
}

func gameID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeBindError(c, fmt.Errorf("game id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeBindError(c, fmt.Errorf("limit must be an integer"))
		return 0, false
	}
	return limit, true
}

func userOut(u *domain.User) chessdto.UserOut {
	return chessdto.UserOut{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Wins:      u.Wins,
		Losses:    u.Losses,
		Draws:     u.Draws,
		Elo:       u.Elo,
	}
}
