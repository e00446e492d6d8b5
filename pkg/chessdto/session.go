package chessdto

// MatchmakeResponse reports where the requester was seated: matched, waiting or active.
type MatchmakeResponse struct {
	Status  string `json:"status"`
	GameID  *int64 `json:"game_id"`
	Message string `json:"message"`
}
