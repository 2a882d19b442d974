package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"contas/internal/core"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed pgmigrations/*.sql
var pgMigrationsFS embed.FS

// PostgresStore keeps the snapshot in the same single-row slot table as the
// SQLite backend, but in Postgres. Useful when the ledger should survive the
// machine it was created on.
type PostgresStore struct {
	db      *sql.DB
	slotKey string
}

func NewPostgresStore(dsn, slotKey string) (*PostgresStore, error) {
	if slotKey == "" {
		slotKey = DefaultSlotKey
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db, slotKey: slotKey}, nil
}

func runPostgresMigrations(db *sql.DB) error {
	goose.SetBaseFS(pgMigrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "pgmigrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (core.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshot_slots WHERE slot_key = $1`, s.slotKey,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot slot: %w", err)
	}
	return DecodeSnapshot([]byte(data))
}

func (s *PostgresStore) Save(ctx context.Context, snap core.Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshot_slots (slot_key, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (slot_key) DO UPDATE SET
		   data = EXCLUDED.data,
		   updated_at = now()`,
		s.slotKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("write snapshot slot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
