// Package quota admits or rejects chat traffic against the active
// subscription's allowance.
package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeservir/chatserve-backend/pkg/db/models"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/metrics"
)

type subscriptionSource interface {
	FindActiveSubscription(ctx context.Context, chatbotID uuid.UUID) (*models.Subscription, error)
}

type consumer interface {
	ConsumeBelow(ctx context.Context, chatbotID uuid.UUID, limit int64) (int64, bool, error)
}

// GateParams groups dependencies for the quota gate.
type GateParams struct {
	Subscriptions subscriptionSource
	Usage         consumer
	Logger        *logger.Logger
	Metrics       *metrics.BillingMetrics
}

// Gate decides, per message, whether a chatbot may keep talking. A granted
// unit is consumed immediately; there is no separate reserve step to race.
type Gate struct {
	subs    subscriptionSource
	usage   consumer
	logger  *logger.Logger
	metrics *metrics.BillingMetrics
}

// Decision reports the counter state after a grant or denial.
type Decision struct {
	Count     int64 `json:"count"`
	Quota     int64 `json:"quota"`
	Remaining int64 `json:"remaining"`
}

// NewGate builds a quota gate.
func NewGate(params GateParams) (*Gate, error) {
	if params.Subscriptions == nil {
		return nil, errors.New("subscription source is required")
	}
	if params.Usage == nil {
		return nil, errors.New("usage consumer is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Gate{
		subs:    params.Subscriptions,
		usage:   params.Usage,
		logger:  params.Logger,
		metrics: params.Metrics,
	}, nil
}

// CheckAndConsume grants one message unit if the chatbot has quota headroom.
// Denials come back as a quota error carrying the counter snapshot; the grant
// and the count check are one atomic step.
func (g *Gate) CheckAndConsume(ctx context.Context, chatbotID uuid.UUID) (*Decision, error) {
	ctx = g.logger.WithChatbotID(ctx, chatbotID.String())

	sub, err := g.subs.FindActiveSubscription(ctx, chatbotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			g.metrics.IncQuotaCheck("no_subscription")
			return nil, pkgerrors.New(pkgerrors.CodeQuotaExceeded, "no active subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load subscription")
	}

	count, allowed, err := g.usage.ConsumeBelow(ctx, chatbotID, sub.ChatQuota)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "consume quota")
	}

	decision := &Decision{Count: count, Quota: sub.ChatQuota}
	if count < sub.ChatQuota {
		decision.Remaining = sub.ChatQuota - count
	}

	if !allowed {
		g.metrics.IncQuotaCheck("denied")
		g.logger.Warn(ctx, "chat quota exhausted")
		return nil, pkgerrors.New(pkgerrors.CodeQuotaExceeded, "chat limit exceeded").WithDetails(decision)
	}

	g.metrics.IncQuotaCheck("allowed")
	return decision, nil
}
