package domain

import "time"

// EventType names a live game notification.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventJoined   EventType = "joined"
	EventMove     EventType = "move"
	EventFinished EventType = "finished"
)

// GameEvent is broadcast to live subscribers of a game.
type GameEvent struct {
	Type   EventType `json:"type"`
	GameID int64     `json:"game_id"`
	Move   string    `json:"move,omitempty"`
	SAN    string    `json:"san,omitempty"`
	Ply    int       `json:"ply"`
	FEN    string    `json:"fen"`
	Status Status    `json:"status"`
	Result string    `json:"result,omitempty"`
	At     time.Time `json:"at"`
}
