// Package usage tracks per-chatbot message consumption across a cache layer
// and a durable counter. The database row is authoritative.
package usage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/pkg/db/models"
)

// Repository is the durable half of the counter. All mutations are single
// atomic statements so concurrent writers never lose increments.
type Repository interface {
	Increment(ctx context.Context, chatbotID uuid.UUID) (int64, error)
	IncrementBelow(ctx context.Context, chatbotID uuid.UUID, limit int64) (int64, bool, error)
	Reset(ctx context.Context, chatbotID uuid.UUID) error
	Read(ctx context.Context, chatbotID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Increment(ctx context.Context, chatbotID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO chat_usage (chatbot_id, chat_count, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (chatbot_id)
		DO UPDATE SET chat_count = chat_usage.chat_count + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING chat_count`, chatbotID).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IncrementBelow consumes one unit only while the count is under limit. The
// guard lives in the UPDATE itself, so two racing consumers of the last unit
// cannot both win.
func (r *repository) IncrementBelow(ctx context.Context, chatbotID uuid.UUID, limit int64) (int64, bool, error) {
	if err := r.ensureRow(ctx, chatbotID); err != nil {
		return 0, false, err
	}

	var count int64
	res := r.db.WithContext(ctx).Raw(`
		UPDATE chat_usage
		SET chat_count = chat_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE chatbot_id = ? AND chat_count < ?
		RETURNING chat_count`, chatbotID, limit).Scan(&count)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.Read(ctx, chatbotID)
		if err != nil {
			return 0, false, err
		}
		return current, false, nil
	}
	return count, true, nil
}

func (r *repository) Reset(ctx context.Context, chatbotID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO chat_usage (chatbot_id, chat_count, updated_at)
		VALUES (?, 0, CURRENT_TIMESTAMP)
		ON CONFLICT (chatbot_id)
		DO UPDATE SET chat_count = 0, updated_at = CURRENT_TIMESTAMP`, chatbotID).Error
}

func (r *repository) Read(ctx context.Context, chatbotID uuid.UUID) (int64, error) {
	var row models.ChatUsage
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ?", chatbotID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.ChatCount, nil
}

func (r *repository) ensureRow(ctx context.Context, chatbotID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO chat_usage (chatbot_id, chat_count, updated_at)
		VALUES (?, 0, CURRENT_TIMESTAMP)
		ON CONFLICT (chatbot_id) DO NOTHING`, chatbotID).Error
}
