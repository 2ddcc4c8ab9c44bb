package storage

import (
	"context"

	"tradegate/internal/domain"
)

// DecisionStore is the decision history contract. Append is atomic: a
// decision is either fully visible to readers or not visible at all.
type DecisionStore interface {
	// Append adds a finalized decision. Returns ErrMissingGateResult if the
	// decision was never gated, ErrDuplicateKey if the id already exists.
	Append(ctx context.Context, d *domain.Decision) error

	// Last retrieves at most n decisions for a symbol, most recent first.
	Last(ctx context.Context, symbol string, n int) ([]*domain.Decision, error)

	// Get retrieves a decision by its ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Decision, error)
}

// AuditArchive receives finalized decisions and violations for analytics.
// Writes are best-effort: archive failure must never block the pipeline.
type AuditArchive interface {
	// ArchiveDecision records a flattened view of a finalized decision.
	ArchiveDecision(ctx context.Context, d *domain.Decision) error

	// ArchiveViolations records safety violations.
	ArchiveViolations(ctx context.Context, violations []*domain.Violation) error
}
