// Package backend selects and constructs the snapshot store.
package backend

import (
	"fmt"
	"log/slog"

	"contas/internal/storage"
)

// Type represents the kind of snapshot backend.
type Type string

const (
	MemoryBackend   Type = "memory"
	FileBackend     Type = "file"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, FileBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	// File specific
	SnapshotFile string

	// Slot the snapshot is stored under (sqlite/postgres)
	SlotKey string
}

// Result contains the store instance and its cleanup function.
type Result struct {
	Store   storage.SnapshotStore
	Cleanup func() error
}

// Open creates the snapshot store described by config.
func Open(config Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath, config.SlotKey)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"slot", config.SlotKey)
		return &Result{Store: store, Cleanup: store.Close}, nil

	case PostgresBackend:
		store, err := storage.NewPostgresStore(config.PostgresDSN, config.SlotKey)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		logger.Info("Initialized Postgres backend", "slot", config.SlotKey)
		return &Result{Store: store, Cleanup: store.Close}, nil

	case FileBackend:
		store, err := storage.NewFileStore(config.SnapshotFile)
		if err != nil {
			return nil, fmt.Errorf("initialize file store: %w", err)
		}
		logger.Info("Initialized file backend", "path", config.SnapshotFile)
		return &Result{Store: store, Cleanup: store.Close}, nil

	default:
		store := storage.NewMemoryStore()
		logger.Info("Initialized memory backend")
		return &Result{Store: store, Cleanup: store.Close}, nil
	}
}
