package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage stores one answered turn for history lookups.
type ChatMessage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChatbotID   uuid.UUID `gorm:"column:chatbot_id;type:uuid;not null;index"`
	SessionID   uuid.UUID `gorm:"column:session_id;type:uuid;not null;index"`
	UserMessage string    `gorm:"column:user_message;not null"`
	BotResponse string    `gorm:"column:bot_response;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
