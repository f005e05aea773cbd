package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeservir/chatserve-backend/api/controllers"
	"github.com/codeservir/chatserve-backend/api/routes"
	"github.com/codeservir/chatserve-backend/internal/billing"
	"github.com/codeservir/chatserve-backend/internal/catalog"
	"github.com/codeservir/chatserve-backend/internal/chat"
	"github.com/codeservir/chatserve-backend/internal/quota"
	"github.com/codeservir/chatserve-backend/internal/usage"
	"github.com/codeservir/chatserve-backend/pkg/config"
	"github.com/codeservir/chatserve-backend/pkg/db"
	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/metrics"
	"github.com/codeservir/chatserve-backend/pkg/migrate"
	"github.com/codeservir/chatserve-backend/pkg/razorpay"
	"github.com/codeservir/chatserve-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)
	planCatalog := catalog.Default()

	usageCounter, err := usage.NewCounter(usage.CounterParams{
		Repo:   usage.NewRepository(dbClient.DB()),
		Cache:  redisClient,
		TTL:    cfg.Billing.UsageCacheTTL,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage counter", err)
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(dbClient.DB())

	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:              billingRepo,
		Catalog:           planCatalog,
		Gateway:           gateway,
		TransactionRunner: dbClient,
		Usage:             usageCounter,
		Logger:            logg,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	quotaGate, err := quota.NewGate(quota.GateParams{
		Subscriptions: billingRepo,
		Usage:         usageCounter,
		Logger:        logg,
		Metrics:       billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quota gate", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.ServiceParams{
		Repo:      chat.NewRepository(dbClient.DB()),
		Gate:      quotaGate,
		Responder: chat.EchoResponder{},
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		Catalog:        planCatalog,
		BillingService: billingService,
		ChatService:    chatService,
		RedisClient:    redisClient,
		GatewayKeyID:   gateway.KeyID(),
		ReadinessProbes: map[string]controllers.ReadinessProbe{
			"database": dbClient.Ping,
			"redis":    redisClient.Ping,
		},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
