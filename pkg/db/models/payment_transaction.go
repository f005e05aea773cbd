package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codeservir/chatserve-backend/pkg/enums"
)

// PaymentTransaction is the append-only audit row written once per verified
// payment. Never mutated after insert; TransactionID is unique so replays of
// the same gateway payment cannot double-record.
type PaymentTransaction struct {
	ID             uuid.UUID               `gorm:"type:uuid;primaryKey"`
	ChatbotID      uuid.UUID               `gorm:"column:chatbot_id;type:uuid;not null;index"`
	SubscriptionID uuid.UUID               `gorm:"column:subscription_id;type:uuid;not null"`
	GatewayName    string                  `gorm:"column:gateway_name;not null"`
	TransactionID  string                  `gorm:"column:transaction_id;not null;uniqueIndex:uq_payment_transactions_transaction_id"`
	AmountMajor    decimal.Decimal         `gorm:"column:amount_major;type:numeric(12,2);not null"`
	CurrencyCode   string                  `gorm:"column:currency_code;not null"`
	Status         enums.TransactionStatus `gorm:"column:status;not null"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}
