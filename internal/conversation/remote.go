package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"c5chat-backend/internal/chat"
	"c5chat-backend/pkg/api"

	"github.com/go-resty/resty/v2"
)

// RemoteGateway talks to the backend's REST surface and implements both
// gateway interfaces, so a Conversation can run as a plain HTTP client of the
// service. Failed responses are classified by their structured error code.
type RemoteGateway struct {
	client *resty.Client
}

func NewRemoteGateway(baseURL string) *RemoteGateway {
	return &RemoteGateway{client: resty.New().SetBaseURL(baseURL)}
}

func (g *RemoteGateway) EnsureSession(ctx context.Context, sessionID string) (bool, error) {
	var body api.ErrorResponse
	res, err := g.client.R().
		SetContext(ctx).
		SetBody(api.EnsureSessionRequest{SessionID: sessionID}).
		SetError(&body).
		Post("/api/v1/chat/session")

	if err != nil {
		return false, fmt.Errorf("ensure session request failed: %w", err)
	}
	if !res.IsSuccess() {
		return false, classify(res, body)
	}

	return res.StatusCode() == http.StatusCreated, nil
}

func (g *RemoteGateway) Exchange(ctx context.Context, sessionID, userText string) (string, error) {
	var out api.SendMessageResponse
	var body api.ErrorResponse
	res, err := g.client.R().
		SetContext(ctx).
		SetBody(api.SendMessageRequest{SessionID: sessionID, Message: userText}).
		SetResult(&out).
		SetError(&body).
		Post("/api/v1/chat/message")

	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrUpstream, err)
	}
	if !res.IsSuccess() {
		return "", classify(res, body)
	}

	return out.Response, nil
}

func classify(res *resty.Response, body api.ErrorResponse) error {
	msg := body.Error
	if msg == "" {
		msg = res.Status()
	}

	switch body.Code {
	case api.CodeOrphanedSession:
		return fmt.Errorf("%w: %s", chat.ErrOrphanedSession, msg)
	case api.CodeEmptyReply:
		return fmt.Errorf("%w: %s", chat.ErrEmptyReply, msg)
	case api.CodeUpstream:
		return fmt.Errorf("%w: %s", chat.ErrUpstream, msg)
	case api.CodeStorage:
		return fmt.Errorf("%w: %s", chat.ErrStorage, msg)
	}
	return errors.New(msg)
}
