package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgettracker/internal/cli"
	apphttp "budgettracker/internal/http"
	"budgettracker/internal/log"
	"budgettracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var publisher services.Publisher
	if client := cli.InitAMQP(logger, cfg, false); client != nil {
		defer client.Close()
		publisher = client
	}

	users, budgets, issuer := cli.NewServices(cfg, repo, publisher, logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if cfg.SeedDemoData {
		if err := services.SeedDemoData(ctx, users, budgets, logger); err != nil {
			logger.Error("Demo seed failed", log.FieldError, err)
			os.Exit(1)
		}
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		CORSOrigin:     cfg.CORSOrigin,
		LoginRateLimit: cfg.LoginRateLimit,
	}, apphttp.Deps{
		Users:   users,
		Budgets: budgets,
		Tokens:  issuer,
		DB:      repo,
		Logger:  logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting budget API", "port", cfg.Port, "amqp", publisher != nil, "signup", cfg.AllowSignup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
