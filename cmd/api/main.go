// Package main is the entry point for the checkout API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/chennuo2233-png/acp-checkout/internal/api"
	"github.com/chennuo2233-png/acp-checkout/internal/catalog"
	"github.com/chennuo2233-png/acp-checkout/internal/checkout"
	"github.com/chennuo2233-png/acp-checkout/internal/config"
	"github.com/chennuo2233-png/acp-checkout/internal/health"
	"github.com/chennuo2233-png/acp-checkout/internal/idempotency"
	"github.com/chennuo2233-png/acp-checkout/internal/middleware"
	"github.com/chennuo2233-png/acp-checkout/internal/notify"
	"github.com/chennuo2233-png/acp-checkout/internal/payment"
	"github.com/chennuo2233-png/acp-checkout/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Agentic Checkout API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	// Stores: Redis when configured, otherwise in memory.
	var (
		sessions     session.Store
		idemStore    idempotency.Store
		storeChecker api.HealthChecker
	)
	idemTTL := time.Duration(cfg.IdempotencyTTLSecs) * time.Second
	cleanupStop := make(chan struct{})
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		sessions = session.NewRedisStore(client)
		idemStore = idempotency.NewRedisStore(client, idemTTL)
		storeChecker = health.NewRedisChecker(client)
		logger.Info("using redis stores", "addr", opts.Addr)
	} else {
		memIdem := idempotency.NewInMemoryStore(idemTTL)
		go idempotency.RunPeriodicCleanup(memIdem, time.Minute, cleanupStop)

		sessions = session.NewInMemoryStore()
		idemStore = memIdem
		logger.Info("using in-memory stores")
	}

	// Payment gateway: real Stripe when enabled, local stub otherwise.
	var gateway payment.Gateway
	var chargeLookup checkout.ChargeLookup
	if cfg.StripeEnabled {
		gateway = payment.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeConnectAccountID)
		chargeLookup = payment.StripeChargeLookup{}
		logger.Info("stripe gateway enabled")
	} else {
		gateway = payment.NewStubGateway()
		logger.Info("stub gateway enabled, charges settle locally")
	}

	var notifier notify.Publisher = notify.NoopPublisher{}
	if cfg.OutboundWebhookURL != "" {
		notifier = notify.NewWebhookPublisher(cfg.OutboundWebhookURL, cfg.OutboundWebhookSecret)
	}

	// Metrics registry with process and Go collectors.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := checkout.NewMetrics()
	if err := checkoutMetrics.Register(registry); err != nil {
		logger.Error("failed to register checkout metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	products := catalog.NewInMemoryRepository()

	builder := checkout.NewBuilder(checkout.BuilderConfig{
		TaxRateBPS:         cfg.TaxRateBPS,
		ShipStandardCents:  cfg.ShipStandardCents,
		StripeAccountID:    cfg.StripeConnectAccountID,
		OrderPermalinkBase: cfg.OrderPermalinkBase,
		TermsOfUseURL:      cfg.TermsOfUseURL,
		PrivacyPolicyURL:   cfg.PrivacyPolicyURL,
		ReturnPolicyURL:    cfg.ReturnPolicyURL,
	})

	engine := checkout.NewEngine(checkout.Deps{
		Sessions:         sessions,
		Idempotency:      idemStore,
		Catalog:          products,
		Builder:          builder,
		Gateway:          gateway,
		Notifier:         notifier,
		Metrics:          checkoutMetrics,
		ConnectAccountID: cfg.StripeConnectAccountID,
	})
	reconciler := checkout.NewReconciler(sessions, idemStore, notifier, chargeLookup, checkoutMetrics)

	mux := http.NewServeMux()
	api.NewCheckoutHandlers(engine).Register(mux)
	api.NewWebhookHandlers(
		cfg.StripeWebhookSecret,
		time.Duration(cfg.StripeWebhookToleranceSecs)*time.Second,
		reconciler,
	).Register(mux)
	api.NewHealthHandlers(storeChecker).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Apply middleware: RequestID -> Logging -> HTTPMetrics
	handler := middleware.RequestID(middleware.Logging(logger)(middleware.HTTPMetrics(httpMetrics)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
