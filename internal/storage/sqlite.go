package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"contas/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the snapshot in a single-row slot table inside a local
// SQLite database. The value is the same JSON text the other backends use.
type SQLiteStore struct {
	db      *sql.DB
	slotKey string
}

func NewSQLiteStore(dbPath, slotKey string) (*SQLiteStore, error) {
	if slotKey == "" {
		slotKey = DefaultSlotKey
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, slotKey: slotKey}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (core.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshot_slots WHERE slot_key = ?`, s.slotKey,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot slot: %w", err)
	}
	return DecodeSnapshot([]byte(data))
}

func (s *SQLiteStore) Save(ctx context.Context, snap core.Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshot_slots (slot_key, data, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(slot_key) DO UPDATE SET
		   data = excluded.data,
		   updated_at = CURRENT_TIMESTAMP`,
		s.slotKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("write snapshot slot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"slot", s.slotKey,
		"bytes", len(data))
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
