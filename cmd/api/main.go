package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-relay/internal/client"
	"payment-relay/internal/config"
	"payment-relay/internal/logger"
	"payment-relay/internal/repository"
	"payment-relay/internal/server"
	"payment-relay/internal/service"
	"payment-relay/internal/worker"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	if !cfg.MyFatoorah.Configured() {
		log.Warn().Msg("MYFATOORAH_API_TOKEN not set; payment endpoints will return a configuration error")
	}
	if !cfg.Shopify.Configured() {
		log.Warn().Msg("SHOPIFY_ACCESS_TOKEN or SHOPIFY_STORE_DOMAIN not set; orders will not be created")
	}

	ledger, err := newLedger(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Idempotency.Store).Msg("init reconciliation ledger")
	}

	gatewayClient := client.NewMyFatoorahClient(&cfg.MyFatoorah, log)
	shopifyClient := client.NewShopifyClient(&cfg.Shopify, log)
	dispatcher := worker.NewDispatcher(cfg.Webhook.TaskTimeout, log)

	reconciler := service.NewReconciler(shopifyClient, ledger, log)
	checkoutService := service.NewCheckoutService(
		gatewayClient,
		shopifyClient,
		reconciler,
		dispatcher,
		log,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(cfg, checkoutService, log)

	log.Info().Str("addr", serverAddr).Str("environment", cfg.Environment.Name).Msg("Starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info().Msg("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("webhook tasks did not finish")
	}
	if err := ledger.Close(); err != nil {
		log.Error().Err(err).Msg("close reconciliation ledger")
	}
}

func newLedger(cfg *config.Config, log zerolog.Logger) (repository.ReconciliationLedger, error) {
	idem := &cfg.Idempotency
	switch idem.Store {
	case "", "memory":
		return repository.NewMemoryLedger(idem.ClaimTimeout, idem.Retention), nil
	case "none":
		log.Warn().Msg("reconciliation dedup disabled; a poll racing a webhook may create two orders")
		return repository.NewNoopLedger(), nil
	case "sqlite", "mysql":
		db, err := client.InitDatabase(idem)
		if err != nil {
			return nil, err
		}
		return repository.NewGormLedger(db, idem.ClaimTimeout), nil
	case "redis":
		rdb := client.NewRedisClient(idem)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.PingRedis(ctx, rdb); err != nil {
			rdb.Close()
			return nil, err
		}
		return repository.NewRedisLedger(rdb, idem.ClaimTimeout, idem.Retention), nil
	default:
		return nil, fmt.Errorf("unknown idempotency store %q", idem.Store)
	}
}
