package razorpay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	rzpsdk "github.com/razorpay/razorpay-go"

	"github.com/codeservir/chatserve-backend/pkg/config"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errLoggerRequired    = errors.New("razorpay logger is required")
)

// OrderParams carries everything needed to open a gateway order.
type OrderParams struct {
	AmountMinorUnits int64
	Currency         string
	Receipt          string
	Notes            map[string]interface{}
}

// Order is the subset of the gateway order we act on.
type Order struct {
	ID               string
	AmountMinorUnits int64
	Currency         string
	Receipt          string
	Status           string
}

// Gateway is the surface billing needs from the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, params OrderParams) (*Order, error)
	KeySecret() string
}

// Client exposes Razorpay primitives with centralized auth, logging, and error mapping.
type Client struct {
	sdk       *rzpsdk.Client
	keyID     string
	keySecret string
	logger    *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}

	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	sdk := rzpsdk.NewClient(keyID, keySecret)
	if cfg.Timeout > 0 {
		sdk.SetTimeout(timeoutSeconds(cfg.Timeout))
	}

	c := &Client{
		sdk:       sdk,
		keyID:     keyID,
		keySecret: keySecret,
		logger:    logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// timeoutSeconds converts a configured timeout into the whole seconds the SDK
// accepts, clamped to its int16 parameter.
func timeoutSeconds(d time.Duration) int16 {
	secs := int64(d / time.Second)
	if secs > math.MaxInt16 {
		return math.MaxInt16
	}
	if secs < 1 {
		return 1
	}
	return int16(secs)
}

// KeyID returns the configured Razorpay key id.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret returns the secret used to sign and verify payloads.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// NewReceipt returns a gateway receipt tag for the given chatbot.
func NewReceipt(chatbotID string) string {
	return fmt.Sprintf("receipt_%s_%d", chatbotID, time.Now().UnixMilli())
}

// CreateOrder opens an order on the gateway for the given amount.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if params.AmountMinorUnits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if strings.TrimSpace(params.Currency) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order currency is required")
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount":   params.AmountMinorUnits,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	})

	data := map[string]interface{}{
		"amount":   params.AmountMinorUnits,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}

	raw, err := c.createWithContext(ctx, data)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create order")
	}

	order := parseOrder(raw, params)
	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return order, nil
}

// createWithContext bridges the SDK call to context cancellation. The SDK has
// its own HTTP timeout; this lets callers bail out earlier.
func (c *Client) createWithContext(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}

	done := make(chan result, 1)
	go func() {
		body, err := c.sdk.Order.Create(data, nil)
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

func parseOrder(raw map[string]interface{}, params OrderParams) *Order {
	order := &Order{
		AmountMinorUnits: params.AmountMinorUnits,
		Currency:         params.Currency,
		Receipt:          params.Receipt,
	}
	if id, ok := raw["id"].(string); ok {
		order.ID = id
	}
	if status, ok := raw["status"].(string); ok {
		order.Status = status
	}
	if amount, ok := raw["amount"].(float64); ok {
		order.AmountMinorUnits = int64(amount)
	}
	if currency, ok := raw["currency"].(string); ok {
		order.Currency = currency
	}
	if receipt, ok := raw["receipt"].(string); ok {
		order.Receipt = receipt
	}
	return order
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}
