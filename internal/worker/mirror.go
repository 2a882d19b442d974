// Package worker keeps a secondary copy of the ledger snapshot in sync with
// the primary store. The worker consumes ledger events and copies the whole
// snapshot after each mutation, with a periodic sweep as a backstop for
// missed messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contas/internal/amqp"
	"contas/internal/storage"
)

// MirrorWorker copies snapshots from a primary store to a backup store.
type MirrorWorker struct {
	primary storage.SnapshotStore
	backup  storage.SnapshotStore
}

func NewMirrorWorker(primary, backup storage.SnapshotStore) *MirrorWorker {
	return &MirrorWorker{
		primary: primary,
		backup:  backup,
	}
}

// HandleLedgerEvent processes a single ledger event message from AMQP. The
// message only tells us that something changed; the snapshot itself is read
// back from the primary store, so replayed or out-of-order messages still
// converge on the current state.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"action", msg.Action,
		"expense_id", msg.ExpenseID,
		"months", msg.Months)

	if err := w.mirror(ctx); err != nil {
		return fmt.Errorf("mirror snapshot for event %s: %w", msg.Action, err)
	}

	return nil
}

// StartupMirror copies the snapshot once at worker startup. This recovers
// from events missed while the worker was down.
func (w *MirrorWorker) StartupMirror(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup mirror")

	if err := w.mirror(ctx); err != nil {
		return fmt.Errorf("startup mirror: %w", err)
	}

	slog.InfoContext(ctx, "Startup mirror completed")
	return nil
}

// RunPeriodic mirrors the snapshot at the given interval until ctx is
// cancelled. This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.mirror(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic mirror failed", "error", err)
			}
		}
	}
}

func (w *MirrorWorker) mirror(ctx context.Context) error {
	snap, err := w.primary.Load(ctx)
	if err != nil {
		return fmt.Errorf("load primary snapshot: %w", err)
	}

	if err := w.backup.Save(ctx, snap); err != nil {
		return fmt.Errorf("save backup snapshot: %w", err)
	}

	months := 0
	expenses := 0
	for _, rec := range snap {
		months++
		expenses += len(rec.Expenses)
	}

	slog.InfoContext(ctx, "Snapshot mirrored",
		"months", months,
		"expenses", expenses)

	return nil
}
