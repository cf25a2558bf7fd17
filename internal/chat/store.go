package chat

import (
	"context"
	"errors"
	"sync"

	"c5chat-backend/internal/database"

	"gorm.io/gorm"
)

// SQLite only supports one writer at a time, so we need a lock
// whenever we write to the database
var dbMutex sync.Mutex

func GetSessions(ctx context.Context, db *gorm.DB) ([]database.ChatSession, error) {
	var sessions []database.ChatSession
	err := db.WithContext(ctx).Order("created_at ASC").Find(&sessions).Error
	return sessions, err
}

func GetSession(ctx context.Context, db *gorm.DB, sessionID string) (database.ChatSession, error) {
	var session database.ChatSession
	err := db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	return session, err
}

func CreateSession(ctx context.Context, db *gorm.DB, session *database.ChatSession) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	return db.WithContext(ctx).Create(session).Error
}

func DeleteSession(ctx context.Context, db *gorm.DB, sessionID string) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	if err := db.WithContext(ctx).Delete(&database.ChatMessage{}, "session_id = ?", sessionID).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&database.ChatSession{}, "id = ?", sessionID).Error
}

func GetChatHistory(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]database.ChatMessage, error) {
	var history []database.ChatMessage
	query := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&history).Error
	return history, err
}

// SaveMessagePair appends a user message and the model reply to a session in
// one transaction, so a partial exchange is never persisted. A missing
// session row is reported as ErrOrphanedSession rather than a driver error.
func SaveMessagePair(ctx context.Context, db *gorm.DB, userMsg, modelMsg *database.ChatMessage) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var session database.ChatSession
		if err := txn.First(&session, "id = ?", userMsg.SessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrphanedSession
			}
			return err
		}

		if err := txn.Create(userMsg).Error; err != nil {
			return translateReferenceError(err)
		}
		if err := txn.Create(modelMsg).Error; err != nil {
			return translateReferenceError(err)
		}
		return nil
	})
}

// The session can still be deleted between the existence check and the
// inserts on backends that enforce the foreign key outside our transaction
// snapshot.
func translateReferenceError(err error) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrOrphanedSession
	}
	return err
}
