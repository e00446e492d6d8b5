package chessdto

import "time"

// GameSummary is one row of a game listing. White and Black carry usernames or the
// "AI" and "TBD" seat labels.
type GameSummary struct {
	ID        int64      `json:"id"`
	White     string     `json:"white"`
	Black     string     `json:"black"`
	Status    string     `json:"status"`
	Result    *string    `json:"result"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	FEN       string     `json:"fen"`
	IsVsAI    bool       `json:"is_vs_ai"`
}

// PlyEntry is the position reached after a single half-move.
type PlyEntry struct {
	Ply int    `json:"ply"`
	UCI string `json:"uci"`
	SAN string `json:"san"`
	FEN string `json:"fen"`
}

type GameDetail struct {
	GameSummary
	Turn    string     `json:"turn"`
	Moves   []string   `json:"moves"`
	History []PlyEntry `json:"history"`
	ECO     string     `json:"eco,omitempty"`
	Opening string     `json:"opening,omitempty"`
}
