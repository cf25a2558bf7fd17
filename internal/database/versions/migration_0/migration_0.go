package migration_0

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatSession struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

type ChatMessage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index;not null"`
	Role      string `gorm:"size:10;not null"`
	Content   string `gorm:"not null"`
	Usage     datatypes.JSON
	CreatedAt time.Time
}

func Migration(txn *gorm.DB) error {
	return txn.AutoMigrate(&ChatSession{}, &ChatMessage{})
}

func Rollback(txn *gorm.DB) error {
	return txn.Migrator().DropTable(&ChatMessage{}, &ChatSession{})
}
