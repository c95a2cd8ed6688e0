package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"budgettracker/internal/cli"
	"budgettracker/internal/log"
	"budgettracker/internal/worker"
)

func main() {
	once := pflag.Bool("once", false, "run a single reconcile sweep and exit")
	noConsume := pflag.Bool("no-consume", false, "only run periodic sweeps, do not consume ledger events")
	pflag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	_, budgets, _ := cli.NewServices(cfg, repo, nil, logger)
	w := worker.NewReconcileWorker(budgets, cfg.ReconcileInterval, logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if *once {
		if err := w.Sweep(ctx); err != nil {
			logger.Error("Reconcile sweep failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.RunSweeps(ctx) })

	if !*noConsume {
		client := cli.InitAMQP(logger, cfg, true)
		defer client.Close()
		g.Go(func() error {
			err := client.ConsumeLedgerEntries(ctx, w.HandleLedgerEntry)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	logger.Info("Starting budget worker", "interval", cfg.ReconcileInterval, "consume", !*noConsume)
	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
