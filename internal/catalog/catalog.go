// Package catalog holds the static plan registry billing quotes from.
package catalog

import (
	"strings"

	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
)

// DefaultCurrency is the ISO currency every plan is priced in today.
const DefaultCurrency = "INR"

// Plan describes a purchasable tier.
type Plan struct {
	ID              string
	Name            string
	PriceMajorUnits int64
	ChatQuota       int64
	Currency        string
}

// PriceMinorUnits returns the gateway amount (paise for INR).
func (p Plan) PriceMinorUnits() int64 {
	return p.PriceMajorUnits * 100
}

// Catalog is an immutable, ordered plan registry.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// New builds a catalog from the given plans. Later duplicates overwrite
// earlier ones but keep the original position.
func New(plans ...Plan) *Catalog {
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			continue
		}
		p.ID = id
		if p.Currency == "" {
			p.Currency = DefaultCurrency
		}
		if _, exists := c.plans[id]; !exists {
			c.order = append(c.order, id)
		}
		c.plans[id] = p
	}
	return c
}

// Default returns the launch catalog.
func Default() *Catalog {
	return New(
		Plan{ID: "basic", Name: "Basic", PriceMajorUnits: 999, ChatQuota: 100_000},
		Plan{ID: "pro", Name: "Pro", PriceMajorUnits: 1999, ChatQuota: 1_000_000},
		Plan{ID: "premium", Name: "Premium", PriceMajorUnits: 5999, ChatQuota: 100_000_000},
	)
}

// Resolve looks up a plan by id. Unknown ids are an expected caller
// mistake, not a system fault.
func (c *Catalog) Resolve(planID string) (Plan, error) {
	id := strings.ToLower(strings.TrimSpace(planID))
	plan, ok := c.plans[id]
	if !ok {
		return Plan{}, pkgerrors.New(pkgerrors.CodeInvalidPlan, "unknown plan: "+planID)
	}
	return plan, nil
}

// List returns the plans in registration order.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
