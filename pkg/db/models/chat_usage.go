package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatUsage is the durable half of the per-chatbot message counter. The Redis
// value mirrors ChatCount and may lag by at most one in-flight write; this row
// is authoritative.
type ChatUsage struct {
	ChatbotID uuid.UUID `gorm:"column:chatbot_id;type:uuid;primaryKey"`
	ChatCount int64     `gorm:"column:chat_count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the legacy table name used by the dashboard queries.
func (ChatUsage) TableName() string { return "chat_usage" }
