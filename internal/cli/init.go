// Package cli consolidates the initialization steps shared by the server and
// worker binaries.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"contas/internal/backend"
	"contas/internal/config"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend opens the snapshot backend named in the configuration.
// Returns the backend or exits the process on failure.
func OpenBackend(logger *slog.Logger, cfg *config.Config) *backend.Result {
	result, err := backend.Open(backend.Config{
		Type:         backend.Type(cfg.LedgerBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		PostgresDSN:  cfg.PostgresDSN,
		SnapshotFile: cfg.SnapshotFile,
		SlotKey:      cfg.SnapshotSlot,
	}, logger)
	if err != nil {
		logger.Error("Failed to open snapshot backend", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}
	return result
}
