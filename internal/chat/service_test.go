package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/internal/quota"
	"github.com/codeservir/chatserve-backend/pkg/db/models"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
)

type stubChatRepo struct {
	chatbots   map[uuid.UUID]*models.Chatbot
	messages   []*models.ChatMessage
	messageErr error
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{chatbots: map[uuid.UUID]*models.Chatbot{}}
}

func (r *stubChatRepo) FindChatbot(ctx context.Context, id uuid.UUID) (*models.Chatbot, error) {
	if bot, ok := r.chatbots[id]; ok {
		return bot, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubChatRepo) CreateChatbot(ctx context.Context, chatbot *models.Chatbot) error {
	r.chatbots[chatbot.ID] = chatbot
	return nil
}

func (r *stubChatRepo) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	if r.messageErr != nil {
		return r.messageErr
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *stubChatRepo) ListMessages(ctx context.Context, params ListMessagesQuery) ([]models.ChatMessage, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubGate struct {
	decision *quota.Decision
	err      error
	calls    int
}

func (g *stubGate) CheckAndConsume(ctx context.Context, chatbotID uuid.UUID) (*quota.Decision, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.decision, nil
}

type stubResponder struct {
	response string
	err      error
	calls    int
}

func (r *stubResponder) Respond(ctx context.Context, chatbotID, sessionID uuid.UUID, message string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.response, nil
}

type chatFixture struct {
	svc       *Service
	repo      *stubChatRepo
	gate      *stubGate
	responder *stubResponder
	chatbotID uuid.UUID
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	repo := newStubChatRepo()
	chatbotID := uuid.New()
	repo.chatbots[chatbotID] = &models.Chatbot{ID: chatbotID, Name: "bot"}

	gate := &stubGate{decision: &quota.Decision{Count: 1, Quota: 100, Remaining: 99}}
	responder := &stubResponder{response: "hello there"}

	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Gate:      gate,
		Responder: responder,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &chatFixture{svc: svc, repo: repo, gate: gate, responder: responder, chatbotID: chatbotID}
}

func TestSendMessageStartsSession(t *testing.T) {
	f := newChatFixture(t)

	reply, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: f.chatbotID,
		Message:   "hi",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.SessionID == uuid.Nil {
		t.Fatal("no session assigned")
	}
	if reply.Response != "hello there" {
		t.Fatalf("response = %q", reply.Response)
	}
	if reply.Usage == nil || reply.Usage.Remaining != 99 {
		t.Fatalf("usage = %+v", reply.Usage)
	}
	if len(f.repo.messages) != 1 {
		t.Fatalf("messages persisted = %d, want 1", len(f.repo.messages))
	}
	msg := f.repo.messages[0]
	if msg.SessionID != reply.SessionID || msg.UserMessage != "hi" || msg.BotResponse != "hello there" {
		t.Fatalf("persisted message wrong: %+v", msg)
	}
}

func TestSendMessageReusesSession(t *testing.T) {
	f := newChatFixture(t)
	session := uuid.New()

	reply, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: f.chatbotID,
		SessionID: &session,
		Message:   "hi again",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.SessionID != session {
		t.Fatalf("session = %s, want %s", reply.SessionID, session)
	}
}

func TestSendMessageUnknownChatbot(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: uuid.New(),
		Message:   "hi",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.gate.calls != 0 {
		t.Fatal("quota consumed for unknown chatbot")
	}
}

func TestSendMessageBlankMessage(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: f.chatbotID,
		Message:   "   ",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.gate.calls != 0 {
		t.Fatal("quota consumed for blank message")
	}
}

func TestSendMessageQuotaDenial(t *testing.T) {
	f := newChatFixture(t)
	f.gate.err = pkgerrors.New(pkgerrors.CodeQuotaExceeded, "chat limit exceeded")

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: f.chatbotID,
		Message:   "hi",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if f.responder.calls != 0 {
		t.Fatal("responder invoked after denial")
	}
	if len(f.repo.messages) != 0 {
		t.Fatal("message persisted after denial")
	}
}

func TestSendMessageResponderFailure(t *testing.T) {
	f := newChatFixture(t)
	f.responder.err = errors.New("engine down")

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: f.chatbotID,
		Message:   "hi",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	// The unit was consumed on acceptance; the failed generation still counts.
	if f.gate.calls != 1 {
		t.Fatalf("gate calls = %d, want 1", f.gate.calls)
	}
}

func TestSendMessageSurvivesPersistFailure(t *testing.T) {
	f := newChatFixture(t)
	f.repo.messageErr = errors.New("db down")

	reply, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatbotID: f.chatbotID,
		Message:   "hi",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Response != "hello there" {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestEchoResponder(t *testing.T) {
	resp, err := EchoResponder{}.Respond(context.Background(), uuid.New(), uuid.New(), "ping")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp != "You said: ping" {
		t.Fatalf("response = %q", resp)
	}
}
