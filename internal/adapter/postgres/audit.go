package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrel-sh/kestrel/internal/port/store"
)

// AuditStore implements store.AuditStore using PostgreSQL (append-only).
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// RecordInvocation inserts one completed invocation into the audit trail.
func (s *AuditStore) RecordInvocation(ctx context.Context, rec *store.AuditRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO invocations (id, prompt_id, call_id, tool, decision, outcome, status, error_kind, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.PromptID, rec.CallID, rec.Tool, rec.Decision, rec.Outcome,
		rec.Status, rec.ErrorKind, rec.Message, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// ListInvocations returns recent invocations, newest first, optionally
// filtered by prompt ID.
func (s *AuditStore) ListInvocations(ctx context.Context, promptID string, limit int) ([]store.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, prompt_id, call_id, tool, decision, outcome, status, error_kind, message, created_at
	          FROM invocations`
	args := []any{}
	if promptID != "" {
		query += ` WHERE prompt_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, promptID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var records []store.AuditRecord
	for rows.Next() {
		var rec store.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.PromptID, &rec.CallID, &rec.Tool, &rec.Decision,
			&rec.Outcome, &rec.Status, &rec.ErrorKind, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
