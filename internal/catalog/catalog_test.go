package catalog

import (
	"testing"

	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
)

func TestDefaultCatalogTiers(t *testing.T) {
	c := Default()

	tests := []struct {
		id         string
		priceMajor int64
		priceMinor int64
		quota      int64
	}{
		{"basic", 999, 99900, 100_000},
		{"pro", 1999, 199900, 1_000_000},
		{"premium", 5999, 599900, 100_000_000},
	}

	for _, tt := range tests {
		plan, err := c.Resolve(tt.id)
		if err != nil {
			t.Fatalf("resolve %s: %v", tt.id, err)
		}
		if plan.PriceMajorUnits != tt.priceMajor {
			t.Errorf("%s price = %d, want %d", tt.id, plan.PriceMajorUnits, tt.priceMajor)
		}
		if plan.PriceMinorUnits() != tt.priceMinor {
			t.Errorf("%s minor units = %d, want %d", tt.id, plan.PriceMinorUnits(), tt.priceMinor)
		}
		if plan.ChatQuota != tt.quota {
			t.Errorf("%s quota = %d, want %d", tt.id, plan.ChatQuota, tt.quota)
		}
		if plan.Currency != DefaultCurrency {
			t.Errorf("%s currency = %q", tt.id, plan.Currency)
		}
	}
}

func TestResolveNormalizesID(t *testing.T) {
	c := Default()
	plan, err := c.Resolve("  Basic ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.ID != "basic" {
		t.Fatalf("plan id = %q", plan.ID)
	}
}

func TestResolveUnknownPlan(t *testing.T) {
	c := Default()
	_, err := c.Resolve("enterprise")
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidPlan) {
		t.Fatalf("expected invalid plan error, got %v", err)
	}
}

func TestListPreservesOrder(t *testing.T) {
	c := New(
		Plan{ID: "b", PriceMajorUnits: 2, ChatQuota: 2},
		Plan{ID: "a", PriceMajorUnits: 1, ChatQuota: 1},
		Plan{ID: "b", PriceMajorUnits: 3, ChatQuota: 3}, // overwrite keeps slot
	)
	plans := c.List()
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].ID != "b" || plans[0].PriceMajorUnits != 3 {
		t.Fatalf("unexpected first plan: %+v", plans[0])
	}
	if plans[1].ID != "a" {
		t.Fatalf("unexpected second plan: %+v", plans[1])
	}
}
