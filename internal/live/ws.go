package live

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
)

const writeTimeout = 5 * time.Second

// SnapshotFunc reads the current state of a game for a new subscriber.
type SnapshotFunc func(ctx context.Context) (domain.GameEvent, error)

// ServeWS upgrades the request, subscribes to the game, sends the snapshot, then streams
// events until the game finishes or the client goes away. The snapshot is read after the
// subscription exists, and move events it already covers are dropped.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, gameID int64, snapshot SnapshotFunc, originPatterns []string) {
	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionNoContextTakeover}
	if len(originPatterns) == 1 && originPatterns[0] == "*" {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = originPatterns
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Int64("game_id", gameID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	// 클라이언트 메시지는 무시, 종료만 감지
	ctx := conn.CloseRead(r.Context())

	events, cancel, err := h.Subscribe(ctx, gameID)
	if err != nil {
		obslog.L().Warn("ws_subscribe_failed", zap.Int64("game_id", gameID), zap.Error(err))
		conn.Close(websocket.StatusTryAgainLater, "subscribe failed")
		return
	}
	defer cancel()

	snap, err := snapshot(ctx)
	if err != nil {
		obslog.L().Warn("ws_snapshot_failed", zap.Int64("game_id", gameID), zap.Error(err))
		conn.Close(websocket.StatusInternalError, "snapshot failed")
		return
	}
	if err := writeEvent(ctx, conn, snap); err != nil {
		return
	}
	if snap.Status == domain.StatusFinished {
		conn.Close(websocket.StatusNormalClosure, "game finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			if ev.Type == domain.EventMove && ev.Ply <= snap.Ply {
				continue
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
			if ev.Type == domain.EventFinished {
				conn.Close(websocket.StatusNormalClosure, "game finished")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev domain.GameEvent) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, ev)
}
