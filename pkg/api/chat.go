package api

import "time"

type EnsureSessionRequest struct {
	SessionID string `json:"session_id"`
}

type EnsureSessionResponse struct {
	Message string `json:"message"`
}

type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type SendMessageResponse struct {
	Response string `json:"response"`
}

type GenerateRequest struct {
	Contents string `json:"contents"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type CountTokensRequest struct {
	Contents string `json:"contents"`
}

type CountTokensResponse struct {
	TotalTokens int `json:"total_tokens"`
}

type SessionMetadata struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GetSessionsResponse struct {
	Sessions []SessionMetadata `json:"sessions"`
}

type HistoryQuery struct {
	SessionID string `schema:"session_id"`
	Limit     int    `schema:"limit"`
}

type HistoryItem struct {
	Role      string `json:"role"` // "user" or "model"
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}
