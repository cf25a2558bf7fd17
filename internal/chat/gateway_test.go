package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"c5chat-backend/internal/database"
	"c5chat-backend/internal/gemini"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	database.EnableForeignKeys(db)
	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

type fakeModel struct {
	calls   [][]gemini.Turn
	replies []gemini.Reply
	err     error
}

func (m *fakeModel) Chat(ctx context.Context, history []gemini.Turn, message string) (gemini.Reply, error) {
	m.calls = append(m.calls, history)
	if m.err != nil {
		return gemini.Reply{}, m.err
	}
	if len(m.replies) == 0 {
		return gemini.Reply{Text: "ok"}, nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	db := createDB(t)
	gateway := NewGateway(db, &fakeModel{})

	created, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)
	assert.False(t, created)

	sessions, err := GetSessions(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session-1", sessions[0].ID)
}

func TestExchangePersistsAlternatingPairs(t *testing.T) {
	db := createDB(t)
	model := &fakeModel{}
	gateway := NewGateway(db, model)

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)

	const n = 3
	for i := 0; i < n; i++ {
		model.replies = []gemini.Reply{{Text: fmt.Sprintf("reply %d", i)}}
		reply, err := gateway.Exchange(context.Background(), "session-1", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("reply %d", i), reply)
	}

	history, err := GetChatHistory(context.Background(), db, "session-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2*n)

	for i := 0; i < n; i++ {
		assert.Equal(t, database.RoleUser, history[2*i].Role)
		assert.Equal(t, fmt.Sprintf("message %d", i), history[2*i].Content)
		assert.Equal(t, database.RoleModel, history[2*i+1].Role)
		assert.Equal(t, fmt.Sprintf("reply %d", i), history[2*i+1].Content)
	}
}

func TestExchangeSendsStoredHistoryToModel(t *testing.T) {
	db := createDB(t)
	model := &fakeModel{replies: []gemini.Reply{{Text: "first reply"}, {Text: "second reply"}}}
	gateway := NewGateway(db, model)

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)

	_, err = gateway.Exchange(context.Background(), "session-1", "first message")
	require.NoError(t, err)
	assert.Empty(t, model.calls[0])

	_, err = gateway.Exchange(context.Background(), "session-1", "second message")
	require.NoError(t, err)

	require.Len(t, model.calls[1], 2)
	assert.Equal(t, gemini.Turn{Role: gemini.RoleUser, Content: "first message"}, model.calls[1][0])
	assert.Equal(t, gemini.Turn{Role: gemini.RoleModel, Content: "first reply"}, model.calls[1][1])
}

func TestExchangeCoercesUnknownRoles(t *testing.T) {
	db := createDB(t)
	model := &fakeModel{}
	gateway := NewGateway(db, model)

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)

	require.NoError(t, db.Create(&database.ChatMessage{
		SessionID: "session-1",
		Role:      "system",
		Content:   "out of band note",
	}).Error)

	_, err = gateway.Exchange(context.Background(), "session-1", "hello")
	require.NoError(t, err)

	require.Len(t, model.calls[0], 1)
	assert.Equal(t, gemini.RoleModel, model.calls[0][0].Role)
}

func TestExchangeEmptyReplyPersistsNothing(t *testing.T) {
	db := createDB(t)
	model := &fakeModel{replies: []gemini.Reply{{Text: "   "}}}
	gateway := NewGateway(db, model)

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)

	_, err = gateway.Exchange(context.Background(), "session-1", "hello")
	assert.ErrorIs(t, err, ErrEmptyReply)

	history, err := GetChatHistory(context.Background(), db, "session-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestExchangeUpstreamErrorPersistsNothing(t *testing.T) {
	db := createDB(t)
	model := &fakeModel{err: errors.New("connection refused")}
	gateway := NewGateway(db, model)

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)

	_, err = gateway.Exchange(context.Background(), "session-1", "hello")
	assert.ErrorIs(t, err, ErrUpstream)

	history, err := GetChatHistory(context.Background(), db, "session-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestExchangeMissingSessionIsOrphaned(t *testing.T) {
	db := createDB(t)
	gateway := NewGateway(db, &fakeModel{})

	_, err := gateway.Exchange(context.Background(), "never-created", "hello")
	assert.ErrorIs(t, err, ErrOrphanedSession)

	history, err := GetChatHistory(context.Background(), db, "never-created", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestExchangeAfterSessionDeleteIsOrphaned(t *testing.T) {
	db := createDB(t)
	gateway := NewGateway(db, &fakeModel{})

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)

	_, err = gateway.Exchange(context.Background(), "session-1", "hello")
	require.NoError(t, err)

	require.NoError(t, DeleteSession(context.Background(), db, "session-1"))

	_, err = gateway.Exchange(context.Background(), "session-1", "are you still there?")
	assert.ErrorIs(t, err, ErrOrphanedSession)
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	db := createDB(t)
	gateway := NewGateway(db, &fakeModel{})

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)
	_, err = gateway.Exchange(context.Background(), "session-1", "hello")
	require.NoError(t, err)

	require.NoError(t, DeleteSession(context.Background(), db, "session-1"))

	sessions, err := GetSessions(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	var count int64
	require.NoError(t, db.Model(&database.ChatMessage{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExchangeStoresUsageMetadata(t *testing.T) {
	db := createDB(t)
	model := &fakeModel{replies: []gemini.Reply{{
		Text:  "hi",
		Usage: &gemini.UsageMetadata{PromptTokenCount: 2, CandidatesTokenCount: 1, TotalTokenCount: 3},
	}}}
	gateway := NewGateway(db, model)

	_, err := gateway.EnsureSession(context.Background(), "session-1")
	require.NoError(t, err)
	_, err = gateway.Exchange(context.Background(), "session-1", "hello")
	require.NoError(t, err)

	history, err := GetChatHistory(context.Background(), db, "session-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.JSONEq(t, `{"promptTokenCount":2,"candidatesTokenCount":1,"totalTokenCount":3}`, string(history[1].Usage))
}
