package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"c5chat-backend/internal/chat"
	"c5chat-backend/internal/gemini"
	"c5chat-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// ModelClient is the surface of the model client the service needs.
type ModelClient interface {
	chat.Completer
	Generate(ctx context.Context, prompt string) (gemini.Reply, error)
	CountTokens(ctx context.Context, text string) (int, error)
}

type ChatService struct {
	db      *gorm.DB
	gateway *chat.Gateway
	model   ModelClient
}

func NewChatService(db *gorm.DB, model ModelClient) *ChatService {
	return &ChatService{
		db:      db,
		gateway: chat.NewGateway(db, model),
		model:   model,
	}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/chat", func(r chi.Router) {
		r.Post("/session", RestHandler(s.EnsureSession))
		r.Delete("/session/{session_id}", RestHandler(s.DeleteSession))
		r.Get("/sessions", RestHandler(s.GetSessions))
		r.Post("/message", RestHandler(s.SendMessage))
		r.Get("/history", RestHandler(s.GetHistory))
	})
	r.Post("/generate", RestHandler(s.Generate))
	r.Post("/count-tokens", RestHandler(s.CountTokens))
}

// EnsureSession confirms or creates the client-generated session id; 200 if
// it already existed, 201 if it was created.
func (s *ChatService) EnsureSession(r *http.Request) (any, error) {
	req, err := ParseRequest[api.EnsureSessionRequest](r)
	if err != nil {
		return nil, err
	}

	if req.SessionID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}

	created, err := s.gateway.EnsureSession(r.Context(), req.SessionID)
	if err != nil {
		return nil, err
	}

	if created {
		return Created(api.EnsureSessionResponse{Message: "Session created successfully."}), nil
	}
	return api.EnsureSessionResponse{Message: "Session already exists."}, nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SendMessageRequest](r)
	if err != nil {
		return nil, err
	}

	if req.SessionID == "" || req.Message == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id and message are required")
	}

	reply, err := s.gateway.Exchange(r.Context(), req.SessionID, req.Message)
	if err != nil {
		return nil, fmt.Errorf("error processing message for session %s: %w", req.SessionID, err)
	}

	return api.SendMessageResponse{Response: reply}, nil
}

func (s *ChatService) Generate(r *http.Request) (any, error) {
	req, err := ParseRequest[api.GenerateRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Contents) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid or empty 'contents' provided")
	}

	reply, err := s.model.Generate(r.Context(), req.Contents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrUpstream, err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return nil, chat.ErrEmptyReply
	}

	return api.GenerateResponse{Text: reply.Text}, nil
}

func (s *ChatService) CountTokens(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CountTokensRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Contents) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid or empty 'contents' provided")
	}

	total, err := s.model.CountTokens(r.Context(), req.Contents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrUpstream, err)
	}

	return api.CountTokensResponse{TotalTokens: total}, nil
}

func (s *ChatService) GetSessions(r *http.Request) (any, error) {
	sessions, err := chat.GetSessions(r.Context(), s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %v", chat.ErrStorage, err)
	}

	resp := api.GetSessionsResponse{Sessions: make([]api.SessionMetadata, len(sessions))}
	for i, session := range sessions {
		resp.Sessions[i] = api.SessionMetadata{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		}
	}
	return resp, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.HistoryQuery](r)
	if err != nil {
		return nil, err
	}

	if query.SessionID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}

	history, err := chat.GetChatHistory(r.Context(), s.db, query.SessionID, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %v", chat.ErrStorage, err)
	}

	resp := make([]api.HistoryItem, len(history))
	for i, msg := range history {
		resp[i] = api.HistoryItem{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return resp, nil
}

func (s *ChatService) DeleteSession(r *http.Request) (any, error) {
	sessionID, err := URLParamString(r, "session_id")
	if err != nil {
		return nil, err
	}

	if _, err := chat.GetSession(r.Context(), s.db, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "session not found")
		}
		return nil, fmt.Errorf("%w: looking up session: %v", chat.ErrStorage, err)
	}

	if err := chat.DeleteSession(r.Context(), s.db, sessionID); err != nil {
		return nil, fmt.Errorf("%w: deleting session: %v", chat.ErrStorage, err)
	}
	return nil, nil
}
