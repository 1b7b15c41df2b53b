package http

// ErrorResponse is the error envelope shared by all endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateSessionRequest struct {
	BaseID      string `json:"base_id"`
	Model       string `json:"model"`
	TokenBudget int    `json:"token_budget" validate:"gte=0"`
}

type SessionDTO struct {
	ID          string `json:"id"`
	BaseID      string `json:"base_id"`
	Model       string `json:"model"`
	TokenBudget int    `json:"token_budget"`
	TokensUsed  int    `json:"tokens_used"`
	CreatedAt   string `json:"created_at"`
}

type SessionResponse struct {
	Status string     `json:"status"`
	Data   SessionDTO `json:"data"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

type TurnDTO struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	TokensIn  int    `json:"tokens_in,omitempty"`
	TokensOut int    `json:"tokens_out,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ChatResponse struct {
	Status string `json:"status"`
	Data   struct {
		Turn       TurnDTO `json:"turn"`
		TokensUsed int     `json:"tokens_used"`
		Budget     int     `json:"budget"`
	} `json:"data"`
}

type TurnsResponse struct {
	Status string    `json:"status"`
	Data   []TurnDTO `json:"data"`
}
