package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/codeservir/chatserve-backend/api/responses"
	"github.com/codeservir/chatserve-backend/api/validators"
	"github.com/codeservir/chatserve-backend/internal/chat"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
)

type chatSendRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"sessionId"`
}

// ChatSend admits one user message through the quota gate and answers it.
func ChatSend(svc *chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatbotID, err := validators.ParsePathUUID(chi.URLParam(r, "chatbotID"), "chatbotID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req chatSendRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := chat.SendMessageInput{
			ChatbotID: chatbotID,
			Message:   req.Message,
		}
		if raw := strings.TrimSpace(req.SessionID); raw != "" {
			sessionID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sessionId"))
				return
			}
			input.SessionID = &sessionID
		}

		reply, err := svc.SendMessage(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reply)
	}
}

type chatMessageResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	UserMessage string    `json:"userMessage"`
	BotResponse string    `json:"botResponse"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatHistory pages through a chatbot's transcript.
func ChatHistory(svc *chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatbotID, err := validators.ParsePathUUID(chi.URLParam(r, "chatbotID"), "chatbotID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor, err := validators.ParseQueryCursor(r, "cursor")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := validators.ParseQueryUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		messages, next, err := svc.History(r.Context(), chat.ListMessagesQuery{
			ChatbotID: chatbotID,
			SessionID: sessionID,
			Limit:     limit,
			Cursor:    cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]chatMessageResponse, 0, len(messages))
		for _, msg := range messages {
			out = append(out, chatMessageResponse{
				ID:          msg.ID.String(),
				SessionID:   msg.SessionID.String(),
				UserMessage: msg.UserMessage,
				BotResponse: msg.BotResponse,
				CreatedAt:   msg.CreatedAt,
			})
		}

		payload := map[string]any{"messages": out}
		if next != nil {
			payload["nextCursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}
