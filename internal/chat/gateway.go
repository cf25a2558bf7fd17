// Package chat implements the two gateways in front of the conversation
// store and the model: idempotent session provisioning and the
// load-history/call-model/persist-pair message exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"c5chat-backend/internal/database"
	"c5chat-backend/internal/gemini"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Completer is the slice of the model client a message exchange needs.
type Completer interface {
	Chat(ctx context.Context, history []gemini.Turn, message string) (gemini.Reply, error)
}

type Gateway struct {
	db  *gorm.DB
	llm Completer
}

func NewGateway(db *gorm.DB, llm Completer) *Gateway {
	return &Gateway{db: db, llm: llm}
}

// EnsureSession confirms that a session row with the given id exists,
// creating it if necessary. It reports whether a new row was created. Losing
// a create race to a concurrent identical insert is success: the row exists,
// which is the post-condition that matters.
func (g *Gateway) EnsureSession(ctx context.Context, sessionID string) (bool, error) {
	_, err := GetSession(ctx, g.db, sessionID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("%w: looking up session: %v", ErrStorage, err)
	}

	err = CreateSession(ctx, g.db, &database.ChatSession{ID: sessionID})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: creating session: %v", ErrStorage, err)
	}

	slog.Info("new chat session created", "session_id", sessionID)
	return true, nil
}

// Exchange sends userText to the model with the session's stored history as
// context, then persists the user message and the reply as one pair. Nothing
// is persisted unless the model produced a non-empty reply.
func (g *Gateway) Exchange(ctx context.Context, sessionID, userText string) (string, error) {
	history, err := GetChatHistory(ctx, g.db, sessionID, 0)
	if err != nil {
		return "", fmt.Errorf("%w: loading history: %v", ErrStorage, err)
	}

	turns := make([]gemini.Turn, len(history))
	for i, msg := range history {
		// The model recognizes exactly two roles; anything unexpected in the
		// store is passed along as a model turn.
		role := gemini.RoleModel
		if msg.Role == database.RoleUser {
			role = gemini.RoleUser
		}
		turns[i] = gemini.Turn{Role: role, Content: msg.Content}
	}

	reply, err := g.llm.Chat(ctx, turns, userText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if strings.TrimSpace(reply.Text) == "" {
		slog.Warn("model returned an empty or invalid reply", "session_id", sessionID)
		return "", ErrEmptyReply
	}

	userMsg := database.ChatMessage{
		SessionID: sessionID,
		Role:      database.RoleUser,
		Content:   userText,
	}
	modelMsg := database.ChatMessage{
		SessionID: sessionID,
		Role:      database.RoleModel,
		Content:   reply.Text,
		Usage:     marshalUsage(reply.Usage),
	}

	if err := SaveMessagePair(ctx, g.db, &userMsg, &modelMsg); err != nil {
		if errors.Is(err, ErrOrphanedSession) {
			return "", err
		}
		return "", fmt.Errorf("%w: saving messages: %v", ErrStorage, err)
	}

	return reply.Text, nil
}

func marshalUsage(usage *gemini.UsageMetadata) datatypes.JSON {
	if usage == nil {
		return nil
	}
	b, err := json.Marshal(usage)
	if err != nil {
		slog.Error("could not marshal usage metadata", "error", err)
		return nil
	}
	return datatypes.JSON(b)
}
