// Package cli holds the start-up steps shared by the binaries under cmd/.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgettracker/internal/amqp"
	"budgettracker/internal/auth"
	"budgettracker/internal/config"
	"budgettracker/internal/log"
	"budgettracker/internal/services"
	"budgettracker/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and installs it as the
// slog default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig exits the process when the configuration is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the database and applies migrations, exiting on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath, log.FieldErrorType, log.ErrorTypeDatabase)
		os.Exit(1)
	}
	return repo
}

// InitAMQP connects to the broker when one is configured. It returns nil when
// AMQP is disabled or unreachable and exits only if required is set.
func InitAMQP(logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if !cfg.AMQPEnabled() {
		if required {
			logger.Error("AMQP_URL is required", log.FieldErrorType, log.ErrorTypeConfiguration)
			os.Exit(1)
		}
		logger.Info("AMQP disabled, ledger events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		if required {
			logger.Error("Failed to connect to AMQP", log.FieldError, err)
			os.Exit(1)
		}
		logger.Warn("AMQP unavailable, continuing without ledger events", log.FieldError, err)
		return nil
	}
	return client
}

// NewServices wires the user and budget services over repo.
func NewServices(cfg *config.Config, repo *storage.SQLiteRepository, publisher services.Publisher, logger *log.Logger) (*services.UserService, *services.BudgetService, *auth.Issuer) {
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	users := services.NewUserService(repo, issuer, services.UserServiceConfig{
		BcryptCost:  cfg.BcryptCost,
		AllowSignup: cfg.AllowSignup,
	}, logger)
	budgets := services.NewBudgetService(repo, services.NewCategoryResolver(repo, logger), publisher, logger)
	return users, budgets, issuer
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
