package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"conti/internal/amqp"
	"conti/internal/cli"
	applog "conti/internal/log"
	"conti/internal/services"
	"conti/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting conti-worker")

	if err := run(logger); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(logger *applog.Logger) error {
	cfg := cli.LoadAndValidateConfig(logger)
	currencies := cli.LoadCurrencies(logger, cfg)
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the worker only sees its own data")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer be.Cleanup()

	mirror := cli.OpenMirror(ctx, logger, cfg)
	w := worker.New(services.NewLedgerProjector(be.Store), be.Store, mirror, cfg.ReconcileBatchSize).
		WithRecurring(services.NewRecurringService(be.Store, currencies))

	g, ctx := errgroup.WithContext(ctx)
	// Run catches up on whatever was missed while the worker was down.
	g.Go(func() error {
		return w.Run(ctx, cfg.ReconcileInterval)
	})

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeExpenseEvents(ctx, w.HandleEvent)
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic reconcile", "interval", cfg.ReconcileInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
