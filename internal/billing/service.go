package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/internal/catalog"
	"github.com/codeservir/chatserve-backend/pkg/db"
	"github.com/codeservir/chatserve-backend/pkg/db/models"
	"github.com/codeservir/chatserve-backend/pkg/enums"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/metrics"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
	"github.com/codeservir/chatserve-backend/pkg/razorpay"
)

const gatewayName = "razorpay"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usageResetter interface {
	Reset(ctx context.Context, chatbotID uuid.UUID) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo              Repository
	Catalog           *catalog.Catalog
	Gateway           razorpay.Gateway
	TransactionRunner txRunner
	Usage             usageResetter
	Logger            *logger.Logger
	Metrics           *metrics.BillingMetrics
}

// Service orchestrates orders, payment verification, and activation.
type Service struct {
	repo     Repository
	catalog  *catalog.Catalog
	gateway  razorpay.Gateway
	txRunner txRunner
	usage    usageResetter
	logger   *logger.Logger
	metrics  *metrics.BillingMetrics
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Usage == nil {
		return nil, errors.New("usage counter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:     params.Repo,
		catalog:  params.Catalog,
		gateway:  params.Gateway,
		txRunner: params.TransactionRunner,
		usage:    params.Usage,
		logger:   params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// OrderQuote pairs a gateway order with the plan it was priced from.
type OrderQuote struct {
	Order *razorpay.Order
	Plan  catalog.Plan
}

// CompletePaymentInput carries the gateway callback fields.
type CompletePaymentInput struct {
	ChatbotID uuid.UUID
	PlanID    string
	OrderID   string
	PaymentID string
	Signature string
}

// Plans exposes the catalog for the public listing endpoint.
func (s *Service) Plans() []catalog.Plan {
	return s.catalog.List()
}

// CreateOrder opens a gateway order priced from the requested plan. No local
// state is written; an abandoned order costs nothing.
func (s *Service) CreateOrder(ctx context.Context, chatbotID uuid.UUID, planID string) (*OrderQuote, error) {
	plan, err := s.catalog.Resolve(planID)
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithChatbotID(ctx, chatbotID.String())
	ctx = s.logger.WithPlanID(ctx, plan.ID)

	started := time.Now()
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderParams{
		AmountMinorUnits: plan.PriceMinorUnits(),
		Currency:         plan.Currency,
		Receipt:          razorpay.NewReceipt(chatbotID.String()),
		Notes: map[string]interface{}{
			"chatbot_id": chatbotID.String(),
			"plan_id":    plan.ID,
		},
	})
	s.metrics.ObserveOrderDuration(plan.ID, time.Since(started))
	if err != nil {
		s.logger.Error(ctx, "gateway order failed", err)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create order")
	}

	s.logger.Info(ctx, "gateway order created")
	return &OrderQuote{Order: order, Plan: plan}, nil
}

// CompletePayment verifies the gateway signature and atomically activates the
// paid subscription. Replays of an already-processed payment return the
// existing subscription without side effects.
func (s *Service) CompletePayment(ctx context.Context, input CompletePaymentInput) (*models.Subscription, error) {
	plan, err := s.catalog.Resolve(input.PlanID)
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithChatbotID(ctx, input.ChatbotID.String())
	ctx = s.logger.WithPlanID(ctx, plan.ID)

	if !VerifyPaymentSignature(input.OrderID, input.PaymentID, input.Signature, s.gateway.KeySecret()) {
		s.metrics.IncVerification("mismatch")
		s.logger.Warn(ctx, "payment signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureMismatch, "payment signature mismatch")
	}
	s.metrics.IncVerification("ok")

	// The gateway payment id anchors idempotency: a payment that already
	// produced a subscription is a replay, not a second activation. The
	// bookkeeping still reruns so a replay heals whatever a partial
	// activation left undone.
	if existing, err := s.repo.FindByPaymentReference(ctx, input.PaymentID); err == nil {
		s.logger.Info(ctx, "payment replayed, returning existing subscription")
		return s.finishActivation(ctx, existing, plan, "replay")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "lookup payment reference")
	}

	sub := &models.Subscription{
		ID:               uuid.New(),
		ChatbotID:        input.ChatbotID,
		PlanID:           plan.ID,
		ChatQuota:        plan.ChatQuota,
		PriceMinorUnits:  plan.PriceMinorUnits(),
		PaymentReference: input.PaymentID,
		PaymentStatus:    enums.PaymentStatusCompleted,
		IsActive:         true,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeactivateSubscriptions(ctx, input.ChatbotID); err != nil {
			return err
		}
		return repo.CreateSubscription(ctx, sub)
	})
	if err != nil {
		// A concurrent verify for the same payment won the race.
		if db.IsUniqueViolation(err, "uq_subscriptions_payment_reference") {
			if existing, ferr := s.repo.FindByPaymentReference(ctx, input.PaymentID); ferr == nil {
				return s.finishActivation(ctx, existing, plan, "replay")
			}
		}
		s.metrics.IncActivation("failed")
		s.logger.Error(ctx, "subscription activation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeActivationFailed, err, "activate subscription")
	}

	return s.finishActivation(ctx, sub, plan, "ok")
}

// finishActivation runs the post-activation bookkeeping: the ledger insert
// (unique transaction_id, conflict ignored) and the usage reset. Both are
// idempotent, so a replayed verify retries whatever an earlier partial
// activation left undone. Failures never roll back the activation: the
// customer paid and must keep the subscription.
func (s *Service) finishActivation(ctx context.Context, sub *models.Subscription, plan catalog.Plan, result string) (*models.Subscription, error) {
	var followup error
	if err := s.recordTransaction(ctx, sub, plan); err != nil {
		followup = multierr.Append(followup, err)
	}
	if err := s.usage.Reset(ctx, sub.ChatbotID); err != nil {
		followup = multierr.Append(followup, err)
	}
	if followup != nil {
		s.metrics.IncActivation("partial")
		s.logger.Error(ctx, "subscription active but bookkeeping incomplete", followup)
		return sub, pkgerrors.Wrap(pkgerrors.CodePartialActivation, followup, "subscription activated with incomplete bookkeeping")
	}

	s.metrics.IncActivation(result)
	s.logger.Info(ctx, "subscription activated")
	return sub, nil
}

func (s *Service) recordTransaction(ctx context.Context, sub *models.Subscription, plan catalog.Plan) error {
	amount := decimal.NewFromInt(sub.PriceMinorUnits).Div(decimal.NewFromInt(100))
	return s.repo.CreateTransaction(ctx, &models.PaymentTransaction{
		ID:             uuid.New(),
		ChatbotID:      sub.ChatbotID,
		SubscriptionID: sub.ID,
		GatewayName:    gatewayName,
		TransactionID:  sub.PaymentReference,
		AmountMajor:    amount,
		CurrencyCode:   plan.Currency,
		Status:         enums.TransactionStatusSuccess,
	})
}

// GetSubscription returns the live subscription merged with usage.
func (s *Service) GetSubscription(ctx context.Context, chatbotID uuid.UUID) (*SubscriptionView, error) {
	view, err := s.repo.FindActiveView(ctx, chatbotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load subscription")
	}
	return view, nil
}

// GetPaymentHistory pages through the transaction ledger, newest first.
func (s *Service) GetPaymentHistory(ctx context.Context, params ListTransactionsQuery) ([]models.PaymentTransaction, *pagination.Cursor, error) {
	txns, next, err := s.repo.ListTransactions(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list transactions")
	}
	return txns, next, nil
}
