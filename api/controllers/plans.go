package controllers

import (
	"net/http"

	"github.com/codeservir/chatserve-backend/api/responses"
	"github.com/codeservir/chatserve-backend/internal/catalog"
)

type planResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceMajorUnits int64  `json:"price"`
	PriceMinorUnits int64  `json:"priceMinorUnits"`
	ChatQuota       int64  `json:"chatQuota"`
	Currency        string `json:"currency"`
}

// PlansList publishes the purchasable tiers.
func PlansList(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans := cat.List()
		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, planResponse{
				ID:              plan.ID,
				Name:            plan.Name,
				PriceMajorUnits: plan.PriceMajorUnits,
				PriceMinorUnits: plan.PriceMinorUnits(),
				ChatQuota:       plan.ChatQuota,
				Currency:        plan.Currency,
			})
		}
		responses.WriteSuccess(w, map[string]any{"plans": out})
	}
}
