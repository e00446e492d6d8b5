package chessdto

// MoveRequest submits a move. Promotion is one of q, r, b, n and may be omitted.
type MoveRequest struct {
	GameID     int64  `json:"game_id" binding:"required"`
	FromSquare string `json:"from_square" binding:"required"`
	ToSquare   string `json:"to_square" binding:"required"`
	Promotion  string `json:"promotion,omitempty"`
}

// MoveResponse reports a move attempt. Valid=false leaves the game unchanged.
type MoveResponse struct {
	MoveUCI string  `json:"move_uci"`
	MoveSAN string  `json:"move_san,omitempty"`
	FEN     string  `json:"fen"`
	Valid   bool    `json:"valid"`
	Message string  `json:"message"`
	Status  string  `json:"status"`
	Result  *string `json:"result"`
	AIMove  string  `json:"ai_move,omitempty"`
}

type LegalMovesResponse struct {
	GameID int64    `json:"game_id"`
	FEN    string   `json:"fen"`
	Turn   string   `json:"turn"`
	Moves  []string `json:"moves"`
}
