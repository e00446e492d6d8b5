// Package live fans game events out to websocket subscribers.
package live

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/obslog"
)

const subscriberBuffer = 16

// Hub publishes game events. With a redis client events travel through pub/sub so every
// replica sees them; without one they stay in process.
type Hub struct {
	rdb *redis.Client

	mu   sync.RWMutex
	subs map[int64]map[string]chan domain.GameEvent
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{rdb: rdb, subs: make(map[int64]map[string]chan domain.GameEvent)}
}

func channelName(gameID int64) string { return "chess:game:" + strconv.FormatInt(gameID, 10) }

// Publish delivers ev to subscribers of ev.GameID.
func (h *Hub) Publish(ctx context.Context, ev domain.GameEvent) error {
	if h == nil {
		return nil
	}
	if h.rdb == nil {
		h.fanout(ev)
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := h.rdb.Publish(ctx, channelName(ev.GameID), b).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of events for gameID. cancel must be called to release it.
func (h *Hub) Subscribe(ctx context.Context, gameID int64) (<-chan domain.GameEvent, func(), error) {
	if h.rdb == nil {
		return h.subscribeLocal(gameID)
	}

	ps := h.rdb.Subscribe(ctx, channelName(gameID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}
	out := make(chan domain.GameEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.GameEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					obslog.L().Warn("live_event_decode_failed", zap.Int64("game_id", gameID), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					obslog.L().Warn("live_subscriber_slow", zap.Int64("game_id", gameID))
				}
			}
		}
	}()
	return out, cancel, nil
}

func (h *Hub) subscribeLocal(gameID int64) (<-chan domain.GameEvent, func(), error) {
	id := uuid.NewString()
	ch := make(chan domain.GameEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[string]chan domain.GameEvent)
	}
	h.subs[gameID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[gameID], id)
			if len(h.subs[gameID]) == 0 {
				delete(h.subs, gameID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (h *Hub) fanout(ev domain.GameEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[ev.GameID] {
		select {
		case ch <- ev:
		default:
			obslog.L().Warn("live_subscriber_slow", zap.Int64("game_id", ev.GameID))
		}
	}
}

// Subscribers counts in-process subscribers of gameID.
func (h *Hub) Subscribers(gameID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}
