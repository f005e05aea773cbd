package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/codeservir/chatserve-backend/pkg/enums"
)

// Subscription persists one billing period's contract for a chatbot.
//
// ChatQuota and PriceMinorUnits are copied from the plan at activation time so
// later catalog edits never alter an active contract. Rows are deactivated,
// never deleted, when a newer subscription activates; a partial unique index
// on (chatbot_id) WHERE is_active enforces at most one active row per chatbot.
type Subscription struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ChatbotID        uuid.UUID           `gorm:"column:chatbot_id;type:uuid;not null;index"`
	PlanID           string              `gorm:"column:plan_id;not null"`
	ChatQuota        int64               `gorm:"column:chat_quota;not null"`
	PriceMinorUnits  int64               `gorm:"column:price_minor_units;not null"`
	PaymentReference string              `gorm:"column:payment_reference;not null;uniqueIndex:uq_subscriptions_payment_reference"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	IsActive         bool                `gorm:"column:is_active;not null;default:false"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
