// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/report"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS login_results (
    id             BIGSERIAL PRIMARY KEY,
    run_id         TEXT        NOT NULL,
    account        TEXT        NOT NULL,
    panel          TEXT        NOT NULL,
    service        TEXT        NOT NULL,
    classification TEXT        NOT NULL,
    kind           TEXT        NOT NULL,
    reason         TEXT        NOT NULL DEFAULT '',
    observed_url   TEXT        NOT NULL DEFAULT '',
    tried_urls     INTEGER     NOT NULL DEFAULT 0,
    succeeded      BOOLEAN     NOT NULL,
    attempted_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS login_results_account_idx ON login_results (account, panel, attempted_at DESC);
`

const insertResultSQL = `
INSERT INTO login_results
    (run_id, account, panel, service, classification, kind, reason, observed_url, tried_urls, succeeded, attempted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const lastSuccessSQL = `
SELECT attempted_at FROM login_results
WHERE account = $1 AND panel = $2 AND succeeded
ORDER BY attempted_at DESC
LIMIT 1`

const historySQL = `
SELECT run_id, panel, classification, kind, reason, tried_urls, succeeded, attempted_at
FROM login_results
WHERE account = $1
ORDER BY attempted_at DESC
LIMIT $2`

// Store keeps a history of per-account login results in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record inserts one account result for runID.
func (s *Store) Record(ctx context.Context, runID string, r report.AccountResult) error {
	tag, err := s.pool.Exec(ctx, insertResultSQL,
		runID,
		r.Account,
		r.Panel,
		r.Service,
		r.Outcome.Classification.String(),
		r.Outcome.Kind.String(),
		r.Outcome.Reason,
		r.Outcome.ObservedURL,
		r.Outcome.TriedURLs,
		r.Succeeded(),
		r.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record result for %s: %w", r.Account, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("failed to record result for %s: %d rows affected", r.Account, tag.RowsAffected())
	}
	s.log.Debug("Result recorded", zap.String("run_id", runID), zap.String("account", r.Account))
	return nil
}

// LastSuccess returns when account last logged into panel successfully. ok
// is false if there is no such record.
func (s *Store) LastSuccess(ctx context.Context, account, panel string) (at time.Time, ok bool, err error) {
	err = s.pool.QueryRow(ctx, lastSuccessSQL, account, panel).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last success for %s: %w", account, err)
	}
	return at, true, nil
}

// HistoryEntry is one stored attempt.
type HistoryEntry struct {
	RunID          string
	Panel          string
	Classification string
	Kind           string
	Reason         string
	TriedURLs      int
	Succeeded      bool
	AttemptedAt    time.Time
}

// History returns up to limit most recent attempts for account, newest first.
func (s *Store) History(ctx context.Context, account string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, historySQL, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", account, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.RunID, &e.Panel, &e.Classification, &e.Kind, &e.Reason, &e.TriedURLs, &e.Succeeded, &e.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", account, err)
	}
	return entries, nil
}
