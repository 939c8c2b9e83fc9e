// Package store defines the persistence port for the invocation audit trail.
package store

import (
	"context"
	"time"
)

// AuditRecord is one completed invocation as persisted for later review.
type AuditRecord struct {
	ID        string    `json:"id"`
	PromptID  string    `json:"prompt_id"`
	CallID    string    `json:"call_id"`
	Tool      string    `json:"tool"`
	Decision  string    `json:"decision"`
	Outcome   string    `json:"outcome,omitempty"`
	Status    string    `json:"status"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditStore persists completed invocations.
type AuditStore interface {
	RecordInvocation(ctx context.Context, rec *AuditRecord) error
	ListInvocations(ctx context.Context, promptID string, limit int) ([]AuditRecord, error)
}
