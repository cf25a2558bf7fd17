package database

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser  string = "user"
	RoleModel string = "model"
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
	Role      string `gorm:"size:10;not null"` // 'user' or 'model'
	Content   string `gorm:"not null"`
	Usage     datatypes.JSON // token counts reported by the model, if any
	CreatedAt time.Time
}
