package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeservir/chatserve-backend/api/controllers"
	"github.com/codeservir/chatserve-backend/api/middleware"
	"github.com/codeservir/chatserve-backend/internal/billing"
	"github.com/codeservir/chatserve-backend/internal/catalog"
	"github.com/codeservir/chatserve-backend/internal/chat"
	"github.com/codeservir/chatserve-backend/pkg/config"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Catalog         *catalog.Catalog
	BillingService  *billing.Service
	ChatService     *chat.Service
	RedisClient     *redis.Client
	GatewayKeyID    string
	ReadinessProbes map[string]controllers.ReadinessProbe
}

// NewRouter assembles the chi handler tree.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.ReadinessProbes))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", controllers.PlansList(params.Catalog))

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.Idempotency(params.RedisClient, logg))
			r.Post("/order", controllers.PaymentOrderCreate(params.BillingService, params.GatewayKeyID, logg))
			r.Post("/verify", controllers.PaymentVerify(params.BillingService, logg))
		})

		r.Route("/chatbots/{chatbotID}", func(r chi.Router) {
			r.Get("/subscription", controllers.SubscriptionGet(params.BillingService, logg))
			r.Get("/payments", controllers.PaymentHistory(params.BillingService, logg))
			r.Post("/chat", controllers.ChatSend(params.ChatService, logg))
			r.Get("/messages", controllers.ChatHistory(params.ChatService, logg))
		})
	})

	return r
}
