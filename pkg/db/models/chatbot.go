package models

import (
	"time"

	"github.com/google/uuid"
)

// Chatbot is the tenant unit every subscription and usage counter hangs off.
type Chatbot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
