// Package storage persists the ledger snapshot.
//
// The persistence contract is deliberately simple: after any state-changing
// operation the entire month-keyed mapping is serialized as JSON and written
// under one fixed slot key. There is no partial persistence and no schema
// versioning; an absent or unreadable slot means an empty ledger.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"contas/internal/core"
)

// DefaultSlotKey is the fixed slot the snapshot lives under.
const DefaultSlotKey = "financeData"

// SnapshotStore is the port every persistence backend implements.
type SnapshotStore interface {
	// Load reads the stored snapshot. An absent slot yields an empty
	// snapshot and no error; a corrupt slot yields an error the caller
	// may choose to ignore.
	Load(ctx context.Context) (core.Snapshot, error)

	// Save replaces the stored snapshot with snap.
	Save(ctx context.Context, snap core.Snapshot) error

	Close() error
}

// EncodeSnapshot serializes the snapshot as human-readable JSON.
func EncodeSnapshot(snap core.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot deserializes a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	// A JSON null month record decodes without error into a nil pointer;
	// treat it as corruption rather than handing callers a snapshot that
	// panics on first use.
	for key, rec := range snap {
		if rec == nil {
			return nil, fmt.Errorf("decode snapshot: null record for month %s", key)
		}
	}
	if snap == nil {
		snap = core.Snapshot{}
	}
	return snap, nil
}
