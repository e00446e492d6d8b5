package chessdto

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// MessageResponse is a bare status message, e.g. the health check.
type MessageResponse struct {
	Message string `json:"message"`
}
