package billing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/internal/catalog"
	"github.com/codeservir/chatserve-backend/pkg/db/models"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
	"github.com/codeservir/chatserve-backend/pkg/razorpay"
)

type stubRepo struct {
	subsByReference map[string]*models.Subscription
	created         []*models.Subscription
	transactions    []*models.PaymentTransaction
	deactivated     []uuid.UUID

	createErr      error
	transactionErr error
	view           *SubscriptionView
	viewErr        error
}

func newStubRepo() *stubRepo {
	return &stubRepo{subsByReference: map[string]*models.Subscription{}}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, sub)
	r.subsByReference[sub.PaymentReference] = sub
	return nil
}

func (r *stubRepo) DeactivateSubscriptions(ctx context.Context, chatbotID uuid.UUID) error {
	r.deactivated = append(r.deactivated, chatbotID)
	return nil
}

func (r *stubRepo) FindActiveSubscription(ctx context.Context, chatbotID uuid.UUID) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindByPaymentReference(ctx context.Context, ref string) (*models.Subscription, error) {
	if sub, ok := r.subsByReference[ref]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindActiveView(ctx context.Context, chatbotID uuid.UUID) (*SubscriptionView, error) {
	if r.viewErr != nil {
		return nil, r.viewErr
	}
	if r.view == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.view, nil
}

func (r *stubRepo) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	if r.transactionErr != nil {
		return r.transactionErr
	}
	// Mirrors the conflict-ignoring insert on transaction_id.
	for _, existing := range r.transactions {
		if existing.TransactionID == txn.TransactionID {
			return nil
		}
	}
	r.transactions = append(r.transactions, txn)
	return nil
}

func (r *stubRepo) ListTransactions(ctx context.Context, params ListTransactionsQuery) ([]models.PaymentTransaction, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubGateway struct {
	secret string
	order  *razorpay.Order
	err    error
	calls  []razorpay.OrderParams
}

func (g *stubGateway) CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error) {
	g.calls = append(g.calls, params)
	if g.err != nil {
		return nil, g.err
	}
	if g.order != nil {
		return g.order, nil
	}
	return &razorpay.Order{
		ID:               "order_test",
		AmountMinorUnits: params.AmountMinorUnits,
		Currency:         params.Currency,
		Receipt:          params.Receipt,
		Status:           "created",
	}, nil
}

func (g *stubGateway) KeySecret() string { return g.secret }

type stubTxRunner struct{ err error }

func (r *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(nil)
}

type stubUsage struct {
	resets []uuid.UUID
	err    error
}

func (u *stubUsage) Reset(ctx context.Context, chatbotID uuid.UUID) error {
	if u.err != nil {
		return u.err
	}
	u.resets = append(u.resets, chatbotID)
	return nil
}

type serviceFixture struct {
	svc     *Service
	repo    *stubRepo
	gateway *stubGateway
	usage   *stubUsage
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newStubRepo()
	gateway := &stubGateway{secret: "test-secret"}
	usage := &stubUsage{}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Catalog:           catalog.Default(),
		Gateway:           gateway,
		TransactionRunner: &stubTxRunner{},
		Usage:             usage,
		Logger:            logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &serviceFixture{svc: svc, repo: repo, gateway: gateway, usage: usage}
}

func verifiedInput(t *testing.T, f *serviceFixture, chatbotID uuid.UUID) CompletePaymentInput {
	t.Helper()
	return CompletePaymentInput{
		ChatbotID: chatbotID,
		PlanID:    "basic",
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signFor(t, "order_1", "pay_1", f.gateway.secret),
	}
}

func TestCreateOrderPricesFromPlan(t *testing.T) {
	f := newServiceFixture(t)
	chatbotID := uuid.New()

	quote, err := f.svc.CreateOrder(context.Background(), chatbotID, "pro")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if quote.Order.AmountMinorUnits != 199900 {
		t.Fatalf("amount = %d, want 199900", quote.Order.AmountMinorUnits)
	}
	if quote.Plan.ID != "pro" {
		t.Fatalf("plan = %q", quote.Plan.ID)
	}
	if len(f.gateway.calls) != 1 {
		t.Fatalf("gateway calls = %d", len(f.gateway.calls))
	}
	call := f.gateway.calls[0]
	if !strings.HasPrefix(call.Receipt, "receipt_"+chatbotID.String()+"_") {
		t.Fatalf("receipt %q missing chatbot tag", call.Receipt)
	}
	if call.Notes["plan_id"] != "pro" {
		t.Fatalf("notes = %v", call.Notes)
	}
}

func TestCreateOrderRejectsUnknownPlan(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), "enterprise")
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidPlan) {
		t.Fatalf("expected invalid plan, got %v", err)
	}
	if len(f.gateway.calls) != 0 {
		t.Fatal("gateway called for unknown plan")
	}
}

func TestCreateOrderWrapsGatewayFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.err = errors.New("gateway down")

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), "basic")
	if !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestCompletePaymentActivates(t *testing.T) {
	f := newServiceFixture(t)
	chatbotID := uuid.New()

	sub, err := f.svc.CompletePayment(context.Background(), verifiedInput(t, f, chatbotID))
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}
	if !sub.IsActive {
		t.Fatal("subscription not active")
	}
	if sub.ChatQuota != 100_000 || sub.PriceMinorUnits != 99900 {
		t.Fatalf("plan snapshot wrong: %+v", sub)
	}
	if sub.PaymentReference != "pay_1" {
		t.Fatalf("payment reference = %q", sub.PaymentReference)
	}
	if len(f.repo.deactivated) != 1 {
		t.Fatalf("deactivations = %d, want 1", len(f.repo.deactivated))
	}
	if len(f.repo.transactions) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(f.repo.transactions))
	}
	txn := f.repo.transactions[0]
	if txn.TransactionID != "pay_1" || txn.GatewayName != "razorpay" {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	if txn.AmountMajor.String() != "999" {
		t.Fatalf("amount major = %s, want 999", txn.AmountMajor)
	}
	if len(f.usage.resets) != 1 || f.usage.resets[0] != chatbotID {
		t.Fatalf("usage resets = %v", f.usage.resets)
	}
}

func TestCompletePaymentRejectsForgedSignature(t *testing.T) {
	f := newServiceFixture(t)
	input := verifiedInput(t, f, uuid.New())
	input.Signature = signFor(t, "order_other", "pay_1", f.gateway.secret)

	_, err := f.svc.CompletePayment(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	if len(f.repo.created) != 0 {
		t.Fatal("subscription created despite forged signature")
	}
}

func TestCompletePaymentReplayReturnsExisting(t *testing.T) {
	f := newServiceFixture(t)
	chatbotID := uuid.New()
	input := verifiedInput(t, f, chatbotID)

	first, err := f.svc.CompletePayment(context.Background(), input)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}

	second, err := f.svc.CompletePayment(context.Background(), input)
	if err != nil {
		t.Fatalf("replay complete: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned %s, want %s", second.ID, first.ID)
	}
	if len(f.repo.created) != 1 {
		t.Fatalf("subscriptions created = %d, want 1", len(f.repo.created))
	}
	if len(f.repo.transactions) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(f.repo.transactions))
	}
	// Replays rerun the idempotent bookkeeping, so the reset fires again.
	if len(f.usage.resets) != 2 {
		t.Fatalf("usage resets = %d, want 2", len(f.usage.resets))
	}
}

func TestCompletePaymentReplayRetriesFailedBookkeeping(t *testing.T) {
	f := newServiceFixture(t)
	chatbotID := uuid.New()
	input := verifiedInput(t, f, chatbotID)

	f.usage.err = errors.New("counter down")
	sub, err := f.svc.CompletePayment(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodePartialActivation) {
		t.Fatalf("expected partial activation, got %v", err)
	}
	if sub == nil || !sub.IsActive {
		t.Fatalf("subscription lost: %+v", sub)
	}
	if len(f.usage.resets) != 0 {
		t.Fatalf("resets before recovery = %d, want 0", len(f.usage.resets))
	}

	// The counter comes back; the same verify call must heal the reset.
	f.usage.err = nil
	healed, err := f.svc.CompletePayment(context.Background(), input)
	if err != nil {
		t.Fatalf("replay after recovery: %v", err)
	}
	if healed.ID != sub.ID {
		t.Fatalf("replay returned %s, want %s", healed.ID, sub.ID)
	}
	if len(f.usage.resets) != 1 {
		t.Fatalf("usage resets = %d, want 1", len(f.usage.resets))
	}
	if len(f.repo.created) != 1 {
		t.Fatalf("subscriptions created = %d, want 1", len(f.repo.created))
	}
	if len(f.repo.transactions) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(f.repo.transactions))
	}
}

func TestCompletePaymentActivationFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.createErr = errors.New("insert failed")

	_, err := f.svc.CompletePayment(context.Background(), verifiedInput(t, f, uuid.New()))
	if !pkgerrors.IsCode(err, pkgerrors.CodeActivationFailed) {
		t.Fatalf("expected activation failure, got %v", err)
	}
}

func TestCompletePaymentPartialActivation(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.transactionErr = errors.New("ledger down")
	f.usage.err = errors.New("counter down")

	sub, err := f.svc.CompletePayment(context.Background(), verifiedInput(t, f, uuid.New()))
	if !pkgerrors.IsCode(err, pkgerrors.CodePartialActivation) {
		t.Fatalf("expected partial activation, got %v", err)
	}
	// The paid subscription survives bookkeeping failures.
	if sub == nil || !sub.IsActive {
		t.Fatalf("subscription lost: %+v", sub)
	}
	cause := errors.Unwrap(err)
	if cause == nil {
		t.Fatal("partial activation error has no cause")
	}
	msg := cause.Error()
	if !strings.Contains(msg, "ledger down") || !strings.Contains(msg, "counter down") {
		t.Fatalf("aggregate error missing causes: %v", cause)
	}
}

func TestGetSubscriptionMapsNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GetSubscription(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	f.repo.view = &SubscriptionView{PlanID: "basic", ChatQuota: 100_000, ChatCount: 10}
	view, err := f.svc.GetSubscription(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if view.Remaining() != 99_990 {
		t.Fatalf("remaining = %d", view.Remaining())
	}
}
