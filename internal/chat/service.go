// Package chat serves the metered conversation surface.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/internal/quota"
	"github.com/codeservir/chatserve-backend/pkg/db/models"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
)

// Responder produces the bot side of a conversation. The engine behind it is
// deliberately opaque to billing and quota concerns.
type Responder interface {
	Respond(ctx context.Context, chatbotID, sessionID uuid.UUID, message string) (string, error)
}

type quotaGate interface {
	CheckAndConsume(ctx context.Context, chatbotID uuid.UUID) (*quota.Decision, error)
}

// ServiceParams groups dependencies for the chat service.
type ServiceParams struct {
	Repo      Repository
	Gate      quotaGate
	Responder Responder
	Logger    *logger.Logger
}

// Service admits, answers, and records chat messages.
type Service struct {
	repo      Repository
	gate      quotaGate
	responder Responder
	logger    *logger.Logger
}

// NewService builds a chat service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Gate == nil {
		return nil, errors.New("quota gate is required")
	}
	if params.Responder == nil {
		return nil, errors.New("responder is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:      params.Repo,
		gate:      params.Gate,
		responder: params.Responder,
		logger:    params.Logger,
	}, nil
}

// SendMessageInput carries one inbound user message. A nil SessionID starts a
// new conversation.
type SendMessageInput struct {
	ChatbotID uuid.UUID
	SessionID *uuid.UUID
	Message   string
}

// Reply is the answered message plus the usage snapshot that admitted it.
type Reply struct {
	SessionID uuid.UUID       `json:"sessionId"`
	Response  string          `json:"response"`
	Usage     *quota.Decision `json:"usage"`
}

// SendMessage admits the message through the quota gate, generates the bot
// response, and records the exchange. The quota unit is consumed on
// acceptance, before generation, so a crashed generation still counts.
func (s *Service) SendMessage(ctx context.Context, input SendMessageInput) (*Reply, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	ctx = s.logger.WithChatbotID(ctx, input.ChatbotID.String())

	if _, err := s.repo.FindChatbot(ctx, input.ChatbotID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chatbot not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load chatbot")
	}

	sessionID := uuid.New()
	if input.SessionID != nil {
		sessionID = *input.SessionID
	}
	ctx = s.logger.WithSessionID(ctx, sessionID.String())

	decision, err := s.gate.CheckAndConsume(ctx, input.ChatbotID)
	if err != nil {
		return nil, err
	}

	response, err := s.responder.Respond(ctx, input.ChatbotID, sessionID, input.Message)
	if err != nil {
		s.logger.Error(ctx, "responder failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate response")
	}

	message := &models.ChatMessage{
		ID:          uuid.New(),
		ChatbotID:   input.ChatbotID,
		SessionID:   sessionID,
		UserMessage: input.Message,
		BotResponse: response,
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		// The answer was produced and the unit consumed; losing the
		// transcript row must not eat the reply.
		s.logger.Error(ctx, "chat message not persisted", err)
	}

	return &Reply{SessionID: sessionID, Response: response, Usage: decision}, nil
}

// History pages through a chatbot's transcript, newest first.
func (s *Service) History(ctx context.Context, params ListMessagesQuery) ([]models.ChatMessage, *pagination.Cursor, error) {
	messages, next, err := s.repo.ListMessages(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list messages")
	}
	return messages, next, nil
}

// EchoResponder is the built-in placeholder engine used until a real model
// backend is attached.
type EchoResponder struct{}

func (EchoResponder) Respond(ctx context.Context, chatbotID, sessionID uuid.UUID, message string) (string, error) {
	return fmt.Sprintf("You said: %s", message), nil
}
