package razorpay

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/codeservir/chatserve-backend/pkg/config"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
)

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeySecret: "s"}, logg); err != errKeyIDRequired {
		t.Fatalf("expected key id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k"}, logg); err != errKeySecretRequired {
		t.Fatalf("expected key secret error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, nil); err != errLoggerRequired {
		t.Fatalf("expected logger error, got %v", err)
	}

	c, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: " k ", KeySecret: "s"}, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.KeyID() != "k" {
		t.Fatalf("key id not trimmed: %q", c.KeyID())
	}
	if c.KeySecret() != "s" {
		t.Fatalf("unexpected key secret: %q", c.KeySecret())
	}
}

func TestCreateOrderRejectsBadParams(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	c, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = c.CreateOrder(context.Background(), OrderParams{AmountMinorUnits: 0, Currency: "INR"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}

	_, err = c.CreateOrder(context.Background(), OrderParams{AmountMinorUnits: 99900, Currency: " "})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank currency, got %v", err)
	}
}

func TestTimeoutSecondsClampsToSDKRange(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    int16
	}{
		{"default", 10 * time.Second, 10},
		{"sub-second floors to one", 250 * time.Millisecond, 1},
		{"huge timeout clamps", 20 * 365 * 24 * time.Hour, math.MaxInt16},
	}
	for _, tt := range tests {
		if got := timeoutSeconds(tt.timeout); got != tt.want {
			t.Fatalf("%s: timeoutSeconds(%v) = %d, want %d", tt.name, tt.timeout, got, tt.want)
		}
	}
}

func TestNewReceiptFormat(t *testing.T) {
	receipt := NewReceipt("bot-123")
	if !strings.HasPrefix(receipt, "receipt_bot-123_") {
		t.Fatalf("receipt %q missing prefix", receipt)
	}
	suffix := strings.TrimPrefix(receipt, "receipt_bot-123_")
	if suffix == "" {
		t.Fatalf("receipt %q missing timestamp", receipt)
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			t.Fatalf("receipt timestamp %q not numeric", suffix)
		}
	}
}

func TestParseOrderFallsBackToParams(t *testing.T) {
	params := OrderParams{AmountMinorUnits: 99900, Currency: "INR", Receipt: "receipt_x_1"}

	// Gateway echo wins when present.
	order := parseOrder(map[string]interface{}{
		"id":       "order_abc",
		"status":   "created",
		"amount":   float64(199900),
		"currency": "INR",
		"receipt":  "receipt_x_1",
	}, params)
	if order.ID != "order_abc" || order.Status != "created" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.AmountMinorUnits != 199900 {
		t.Fatalf("expected echoed amount, got %d", order.AmountMinorUnits)
	}

	// Missing fields fall back to what we sent.
	order = parseOrder(map[string]interface{}{"id": "order_def"}, params)
	if order.AmountMinorUnits != 99900 || order.Currency != "INR" || order.Receipt != "receipt_x_1" {
		t.Fatalf("fallback order fields wrong: %+v", order)
	}
}
