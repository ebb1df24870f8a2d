package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/cli"
	"conti/internal/core"
	apphttp "conti/internal/http"
	applog "conti/internal/log"
	"conti/internal/services"
	"conti/internal/worker"
)

const (
	balanceCacheSize    = 512
	balanceCacheTTL     = 5 * time.Minute
	cacheCleanupEvery   = time.Minute
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	if err := run(logger); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *applog.Logger) error {
	cfg := cli.LoadAndValidateConfig(logger)
	currencies := cli.LoadCurrencies(logger, cfg)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	balances := cache.NewLRU[[]core.Balance](balanceCacheSize, balanceCacheTTL)
	caches := cache.NewManager()
	caches.Register(balances)
	caches.StartCleanup(cacheCleanupEvery)
	defer caches.Stop()

	opts := services.Options{Cache: balances, Currencies: currencies}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Projection falls back to inline; the worker reconciles anything missed.
			logger.Warn("AMQP unavailable, projecting ledger entries inline", applog.FieldError, err)
		} else {
			defer client.Close()
			opts.Publisher = client
			logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange)
		}
	}

	projector := services.NewLedgerProjector(be.Store)
	recurring := services.NewRecurringService(be.Store, currencies)
	groups := services.NewGroupService(be.Store, projector, opts)

	// A memory store is invisible to conti-worker, so the background jobs run here.
	if cfg.DataBackend == "memory" {
		w := worker.New(projector, be.Store, cli.OpenMirror(ctx, logger, cfg), cfg.ReconcileBatchSize).WithRecurring(recurring)
		go func() {
			if err := w.Run(ctx, cfg.ReconcileInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("In-process worker stopped", applog.FieldError, err)
			}
		}()
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		PageSizes:          cfg.PageSizes,
		DefaultPageSize:    cfg.DefaultPageSize,
		SearchDebounce:     cfg.SearchDebounce,
	}, apphttp.Deps{
		Groups:       groups,
		Transactions: services.NewTransactionService(be.Store, currencies),
		Recurring:    recurring,
		Accounts:     services.NewAccountService(be.Store, currencies),
		Goals:        services.NewGoalService(be.Store, currencies),
		Currencies:   currencies,
		Logger:       logger,
		Ready:        be.Store.Ping,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext(shutdownGracePeriod)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	}()

	logger.Info("Starting conti server", "port", cfg.Port, "backend", cfg.DataBackend, "currency", currencies.Default())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
	}
	return nil
}

