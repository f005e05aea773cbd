package billing

import (
	"context"

	"github.com/codeservir/chatserve-backend/pkg/db/models"
	"github.com/codeservir/chatserve-backend/pkg/enums"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles subscription and transaction persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	DeactivateSubscriptions(ctx context.Context, chatbotID uuid.UUID) error
	FindActiveSubscription(ctx context.Context, chatbotID uuid.UUID) (*models.Subscription, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Subscription, error)
	FindActiveView(ctx context.Context, chatbotID uuid.UUID) (*SubscriptionView, error)
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	ListTransactions(ctx context.Context, params ListTransactionsQuery) ([]models.PaymentTransaction, *pagination.Cursor, error)
}

// SubscriptionView merges the live subscription with its usage row.
type SubscriptionView struct {
	SubscriptionID  uuid.UUID           `gorm:"column:subscription_id"`
	ChatbotID       uuid.UUID           `gorm:"column:chatbot_id"`
	PlanID          string              `gorm:"column:plan_id"`
	ChatQuota       int64               `gorm:"column:chat_quota"`
	PriceMinorUnits int64               `gorm:"column:price_minor_units"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status"`
	ChatCount       int64               `gorm:"column:chat_count"`
}

// Remaining reports quota headroom, never negative.
func (v SubscriptionView) Remaining() int64 {
	if v.ChatCount >= v.ChatQuota {
		return 0
	}
	return v.ChatQuota - v.ChatCount
}

// ListTransactionsQuery configures payment history queries.
type ListTransactionsQuery struct {
	ChatbotID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	Status    *enums.TransactionStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) DeactivateSubscriptions(ctx context.Context, chatbotID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("chatbot_id = ? AND is_active", chatbotID).
		Update("is_active", false).Error
}

func (r *repository) FindActiveSubscription(ctx context.Context, chatbotID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND is_active", chatbotID).
		Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindActiveView(ctx context.Context, chatbotID uuid.UUID) (*SubscriptionView, error) {
	var view SubscriptionView
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("subscriptions.id AS subscription_id, subscriptions.chatbot_id, subscriptions.plan_id, subscriptions.chat_quota, subscriptions.price_minor_units, subscriptions.payment_status, COALESCE(chat_usage.chat_count, 0) AS chat_count").
		Joins("LEFT JOIN chat_usage ON chat_usage.chatbot_id = subscriptions.chatbot_id").
		Where("subscriptions.chatbot_id = ? AND subscriptions.is_active", chatbotID).
		Take(&view).Error
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	// The ledger is append-only; a replayed gateway payment id is a no-op.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, params ListTransactionsQuery) ([]models.PaymentTransaction, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("chatbot_id = ?", params.ChatbotID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var txns []models.PaymentTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&txns).Error; err != nil {
		return nil, nil, err
	}

	if len(txns) > limit {
		next := txns[limit]
		txns = txns[:limit]
		return txns, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return txns, nil, nil
}
