// Package conversation holds the client-side state of one chat: the session
// id, the visible history, and the send protocol. A user message is applied
// optimistically, committed together with the model reply on success, and
// rolled back on failure; when the server no longer recognizes the session, a
// fresh one is provisioned and the send is retried exactly once.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"c5chat-backend/internal/chat"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	ErrBusy         = errors.New("an exchange is already in flight")
	ErrBlankMessage = errors.New("message is blank")
)

// SessionGateway confirms or creates a session server side.
type SessionGateway interface {
	EnsureSession(ctx context.Context, sessionID string) (created bool, err error)
}

// MessageGateway performs one user-message/model-reply exchange.
type MessageGateway interface {
	Exchange(ctx context.Context, sessionID, userText string) (string, error)
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is safe for concurrent use, but at most one exchange is in
// flight at a time: Send returns ErrBusy instead of queueing.
type Conversation struct {
	sessions SessionGateway
	messages MessageGateway
	newID    func() string

	mu        sync.Mutex
	sessionID string
	history   []Turn
	pending   bool
	lastErr   string
}

func New(sessions SessionGateway, messages MessageGateway) *Conversation {
	return &Conversation{
		sessions: sessions,
		messages: messages,
		newID:    uuid.NewString,
	}
}

// Initialize makes sure the conversation has a live session id. Without one
// it generates a fresh id and registers it; with one it runs a liveness check
// and silently drops a dead id so the next send provisions a new one.
func (c *Conversation) Initialize(ctx context.Context) error {
	sessionID := c.SessionID()

	if sessionID == "" {
		id := c.newID()
		if _, err := c.sessions.EnsureSession(ctx, id); err != nil {
			slog.Error("failed to create session", "session_id", id, "error", err)
			c.mu.Lock()
			c.lastErr = "failed to initialize chat session: " + err.Error()
			c.mu.Unlock()
			return err
		}

		c.mu.Lock()
		c.sessionID = id
		c.lastErr = ""
		c.mu.Unlock()
		return nil
	}

	if _, err := c.sessions.EnsureSession(ctx, sessionID); err != nil {
		slog.Warn("session verification failed, will create a new session on next send", "session_id", sessionID)
		c.setSessionID("")
	}
	return nil
}

// Send runs one exchange: validate, ensure a live session, apply the user
// turn optimistically, call the message gateway, and commit or roll back. A
// session-loss failure triggers exactly one re-provision and resend.
func (c *Conversation) Send(ctx context.Context, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", ErrBlankMessage
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.pending = true
	c.lastErr = ""
	c.mu.Unlock()

	reply, err := c.exchange(ctx, userText)

	c.mu.Lock()
	c.pending = false
	if err != nil {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()

	return reply, err
}

func (c *Conversation) exchange(ctx context.Context, userText string) (string, error) {
	if c.SessionID() == "" {
		if err := c.Initialize(ctx); err != nil || c.SessionID() == "" {
			return "", chat.ErrSessionUnavailable
		}
	}

	// Re-validate the session live: it may have been evicted server side
	// since the conversation was initialized.
	sessionID := c.SessionID()
	if _, err := c.sessions.EnsureSession(ctx, sessionID); err != nil {
		c.setSessionID("")
		if err := c.Initialize(ctx); err != nil || c.SessionID() == "" {
			return "", chat.ErrSessionUnavailable
		}
		sessionID = c.SessionID()
	}

	c.applyUserTurn(userText)

	reply, err := c.messages.Exchange(ctx, sessionID, userText)
	if err == nil {
		c.commitExchange(userText, reply)
		return reply, nil
	}

	c.rollbackUserTurn(userText)

	if !errors.Is(err, chat.ErrOrphanedSession) {
		return "", err
	}

	slog.Warn("session lost during exchange, provisioning a new session and retrying", "session_id", sessionID)

	c.setSessionID("")
	if ierr := c.Initialize(ctx); ierr != nil || c.SessionID() == "" {
		return "", chat.ErrSessionUnavailable
	}

	c.applyUserTurn(userText)

	reply, err = c.messages.Exchange(ctx, c.SessionID(), userText)
	if err != nil {
		c.rollbackUserTurn(userText)
		return "", err
	}

	c.commitExchange(userText, reply)
	return reply, nil
}

// Reset discards the whole conversation, session id included.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.history = nil
	c.pending = false
	c.lastErr = ""
}

func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Err returns the failure message of the last exchange, or "" after a
// successful one.
func (c *Conversation) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Conversation) setSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// applyUserTurn shows the user message before the network round trip.
func (c *Conversation) applyUserTurn(userText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, Turn{Role: RoleUser, Content: userText})
}

// commitExchange replaces the optimistic entry with the canonical pair so the
// user turn and its reply are always adjacent and in order.
func (c *Conversation) commitExchange(userText, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.history); n > 0 && c.history[n-1].Role == RoleUser {
		c.history = c.history[:n-1]
	}
	c.history = append(c.history,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleModel, Content: reply},
	)
}

// rollbackUserTurn removes the optimistic entry after a failed exchange, so
// the history never shows a user message without a reply.
func (c *Conversation) rollbackUserTurn(userText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.history)
	if n > 0 && c.history[n-1].Role == RoleUser && c.history[n-1].Content == userText {
		c.history = c.history[:n-1]
	}
}
