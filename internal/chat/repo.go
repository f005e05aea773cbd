package chat

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/pkg/db/models"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
)

// Repository handles chatbot and message persistence.
type Repository interface {
	FindChatbot(ctx context.Context, id uuid.UUID) (*models.Chatbot, error)
	CreateChatbot(ctx context.Context, chatbot *models.Chatbot) error
	CreateMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, params ListMessagesQuery) ([]models.ChatMessage, *pagination.Cursor, error)
}

// ListMessagesQuery configures chat history queries.
type ListMessagesQuery struct {
	ChatbotID uuid.UUID
	SessionID *uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a chat repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindChatbot(ctx context.Context, id uuid.UUID) (*models.Chatbot, error) {
	var chatbot models.Chatbot
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&chatbot).Error; err != nil {
		return nil, err
	}
	return &chatbot, nil
}

func (r *repository) CreateChatbot(ctx context.Context, chatbot *models.Chatbot) error {
	return r.db.WithContext(ctx).Create(chatbot).Error
}

func (r *repository) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, params ListMessagesQuery) ([]models.ChatMessage, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chatbot_id = ?", params.ChatbotID)
	if params.SessionID != nil {
		query = query.Where("session_id = ?", *params.SessionID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	if len(messages) > limit {
		next := messages[limit]
		messages = messages[:limit]
		return messages, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return messages, nil, nil
}
