package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

type snapshotRow struct {
	Identity string `db:"identity"`
	Version  int    `db:"version"`
	Payload  []byte `db:"payload"`
}

// SnapshotBackend stores one snapshot per identity in bot_snapshots.
type SnapshotBackend struct {
	db *sqlx.DB
}

var _ state.Backend = (*SnapshotBackend)(nil)

// NewSnapshotBackend returns a backend over db.
func NewSnapshotBackend(db *sqlx.DB) *SnapshotBackend {
	return &SnapshotBackend{db: db}
}

// Load returns the stored payload or state.ErrNotFound.
func (b *SnapshotBackend) Load(ctx context.Context, identity string) ([]byte, error) {
	var row snapshotRow
	err := b.db.GetContext(ctx, &row,
		`SELECT identity, version, payload FROM bot_snapshots WHERE identity = $1`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, state.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot %q: %w", identity, err)
	}
	return row.Payload, nil
}

// Save overwrites the snapshot of identity.
func (b *SnapshotBackend) Save(ctx context.Context, identity string, payload []byte) error {
	row := snapshotRow{Identity: identity, Version: payloadVersion(payload), Payload: payload}
	_, err := b.db.NamedExecContext(ctx, `
		INSERT INTO bot_snapshots (identity, version, payload, updated_at)
		VALUES (:identity, :version, :payload, now())
		ON CONFLICT (identity) DO UPDATE
		SET version = EXCLUDED.version, payload = EXCLUDED.payload, updated_at = now()`, row)
	if err != nil {
		return fmt.Errorf("upsert snapshot %q: %w", identity, err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "snapshot.saved",
		slog.String("status", "ok"),
		slog.String("identity", identity),
	)
	return nil
}

func payloadVersion(payload []byte) int {
	var head struct {
		Version int `json:"version"`
	}
	_ = json.Unmarshal(payload, &head)
	return head.Version
}
