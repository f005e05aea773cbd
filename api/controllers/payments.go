package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codeservir/chatserve-backend/api/responses"
	"github.com/codeservir/chatserve-backend/api/validators"
	"github.com/codeservir/chatserve-backend/internal/billing"
	"github.com/codeservir/chatserve-backend/pkg/db/models"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/pagination"
)

type orderCreateRequest struct {
	ChatbotID string `json:"chatbotId" validate:"required"`
	PlanID    string `json:"planId" validate:"required"`
}

type orderCreateResponse struct {
	OrderID          string `json:"orderId"`
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
	Receipt          string `json:"receipt"`
	KeyID            string `json:"keyId"`
	PlanID           string `json:"planId"`
}

// PaymentOrderCreate opens a gateway order for a plan purchase.
func PaymentOrderCreate(svc *billing.Service, keyID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chatbotID, err := uuid.Parse(strings.TrimSpace(req.ChatbotID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chatbotId"))
			return
		}

		quote, err := svc.CreateOrder(r.Context(), chatbotID, req.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orderCreateResponse{
			OrderID:          quote.Order.ID,
			AmountMinorUnits: quote.Order.AmountMinorUnits,
			Currency:         quote.Order.Currency,
			Receipt:          quote.Order.Receipt,
			KeyID:            keyID,
			PlanID:           quote.Plan.ID,
		})
	}
}

type paymentVerifyRequest struct {
	ChatbotID         string `json:"chatbotId" validate:"required"`
	PlanID            string `json:"planId" validate:"required"`
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
}

type subscriptionResponse struct {
	ID               string    `json:"id"`
	ChatbotID        string    `json:"chatbotId"`
	PlanID           string    `json:"planId"`
	ChatQuota        int64     `json:"chatQuota"`
	PriceMinorUnits  int64     `json:"priceMinorUnits"`
	PaymentReference string    `json:"paymentReference"`
	PaymentStatus    string    `json:"paymentStatus"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:               sub.ID.String(),
		ChatbotID:        sub.ChatbotID.String(),
		PlanID:           sub.PlanID,
		ChatQuota:        sub.ChatQuota,
		PriceMinorUnits:  sub.PriceMinorUnits,
		PaymentReference: sub.PaymentReference,
		PaymentStatus:    string(sub.PaymentStatus),
		IsActive:         sub.IsActive,
		CreatedAt:        sub.CreatedAt,
	}
}

// PaymentVerify confirms a gateway callback and activates the subscription.
func PaymentVerify(svc *billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentVerifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chatbotID, err := uuid.Parse(strings.TrimSpace(req.ChatbotID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chatbotId"))
			return
		}

		sub, err := svc.CompletePayment(r.Context(), billing.CompletePaymentInput{
			ChatbotID: chatbotID,
			PlanID:    req.PlanID,
			OrderID:   strings.TrimSpace(req.RazorpayOrderID),
			PaymentID: strings.TrimSpace(req.RazorpayPaymentID),
			Signature: strings.TrimSpace(req.RazorpaySignature),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toSubscriptionResponse(sub))
	}
}

type subscriptionViewResponse struct {
	SubscriptionID  string `json:"subscriptionId"`
	ChatbotID       string `json:"chatbotId"`
	PlanID          string `json:"planId"`
	ChatQuota       int64  `json:"chatQuota"`
	PriceMinorUnits int64  `json:"priceMinorUnits"`
	PaymentStatus   string `json:"paymentStatus"`
	ChatCount       int64  `json:"chatCount"`
	Remaining       int64  `json:"remaining"`
}

// SubscriptionGet returns the active subscription merged with usage.
func SubscriptionGet(svc *billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatbotID, err := validators.ParsePathUUID(chi.URLParam(r, "chatbotID"), "chatbotID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetSubscription(r.Context(), chatbotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, subscriptionViewResponse{
			SubscriptionID:  view.SubscriptionID.String(),
			ChatbotID:       view.ChatbotID.String(),
			PlanID:          view.PlanID,
			ChatQuota:       view.ChatQuota,
			PriceMinorUnits: view.PriceMinorUnits,
			PaymentStatus:   string(view.PaymentStatus),
			ChatCount:       view.ChatCount,
			Remaining:       view.Remaining(),
		})
	}
}

type transactionResponse struct {
	ID            string          `json:"id"`
	GatewayName   string          `json:"gateway"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PaymentHistory pages through the transaction ledger.
func PaymentHistory(svc *billing.Service, logg *logger.Logger) http.HandlerFunc {
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

		txns, next, err := svc.GetPaymentHistory(r.Context(), billing.ListTransactionsQuery{
			ChatbotID: chatbotID,
			Limit:     limit,
			Cursor:    cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]transactionResponse, 0, len(txns))
		for _, txn := range txns {
			out = append(out, transactionResponse{
				ID:            txn.ID.String(),
				GatewayName:   txn.GatewayName,
				TransactionID: txn.TransactionID,
				Amount:        txn.AmountMajor,
				Currency:      txn.CurrencyCode,
				Status:        string(txn.Status),
				CreatedAt:     txn.CreatedAt,
			})
		}

		payload := map[string]any{"transactions": out}
		if next != nil {
			payload["nextCursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}
