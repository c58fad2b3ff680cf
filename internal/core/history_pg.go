package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS upload_history (
    id          UUID PRIMARY KEY,
    dataset_id  UUID,
    filename    TEXT NOT NULL,
    status      TEXT NOT NULL,
    row_count   INTEGER NOT NULL DEFAULT 0,
    col_count   INTEGER NOT NULL DEFAULT 0,
    reason      TEXT NOT NULL DEFAULT '',
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS upload_history_created_at_idx ON upload_history (created_at DESC);
`

const insertHistoryEvent = `
INSERT INTO upload_history
    (id, dataset_id, filename, status, row_count, col_count, reason, ip_address, user_agent, created_at)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10)`

const selectRecentHistory = `
SELECT id::text, COALESCE(dataset_id::text, ''), filename, status, row_count, col_count,
       reason, ip_address, user_agent, created_at
FROM upload_history
ORDER BY created_at DESC
LIMIT NULLIF($1, 0)`

const deleteOldHistory = `DELETE FROM upload_history WHERE created_at < $1`

// PostgresHistory stores upload events in the upload_history table.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// NewPostgresHistory creates the history table if needed.
func NewPostgresHistory(ctx context.Context, pool *pgxpool.Pool) (*PostgresHistory, error) {
	if _, err := pool.Exec(ctx, createHistoryTable); err != nil {
		return nil, fmt.Errorf("create upload_history: %w", err)
	}
	return &PostgresHistory{pool: pool}, nil
}

// Record inserts ev. An empty DatasetID is stored as NULL.
func (h *PostgresHistory) Record(ctx context.Context, ev UploadEvent) error {
	_, err := h.pool.Exec(ctx, insertHistoryEvent,
		ev.ID, ev.DatasetID, ev.Filename, string(ev.Status), ev.Rows, ev.Columns,
		ev.Reason, ev.IPAddress, ev.UserAgent, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. A limit <= 0 returns all
// events.
func (h *PostgresHistory) Recent(ctx context.Context, limit int) ([]UploadEvent, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := h.pool.Query(ctx, selectRecentHistory, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload history: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (UploadEvent, error) {
		var (
			ev     UploadEvent
			status string
		)
		err := row.Scan(&ev.ID, &ev.DatasetID, &ev.Filename, &status, &ev.Rows, &ev.Columns,
			&ev.Reason, &ev.IPAddress, &ev.UserAgent, &ev.CreatedAt)
		ev.Status = UploadStatus(status)
		ev.CreatedAt = ev.CreatedAt.UTC()
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan upload history: %w", err)
	}
	return events, nil
}

// Prune deletes events created before cutoff.
func (h *PostgresHistory) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := h.pool.Exec(ctx, deleteOldHistory, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune upload history: %w", err)
	}
	return tag.RowsAffected(), nil
}
