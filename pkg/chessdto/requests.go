package chessdto

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest binds both the OAuth2 password form and a JSON body.
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// GameStartRequest opens a game. OpponentUsername is accepted but not used for pairing.
type GameStartRequest struct {
	OpponentUsername string `json:"opponent_username"`
	VsAI             bool   `json:"vs_ai"`
}
