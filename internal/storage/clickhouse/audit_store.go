package clickhouse

import (
	"context"
	"fmt"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// AuditStore implements storage.AuditArchive using ClickHouse.
// The archive is a flattened analytics view of the decision trail; the
// postgres decision store remains the source of truth.
type AuditStore struct {
	conn *Conn
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Conn) *AuditStore {
	return &AuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditArchive = (*AuditStore)(nil)

// ArchiveDecision records a flattened view of a finalized decision.
func (s *AuditStore) ArchiveDecision(ctx context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" || d.GateResult == nil {
		return storage.ErrInvalidInput
	}

	var (
		execAccepted uint8
		execReason   string
		execAdjusted float64
		execSequence uint64
	)
	if er := d.ExecutionResult; er != nil {
		execAccepted = boolToUInt8(er.Accepted)
		execReason = er.Reason
		execAdjusted = er.AdjustedSize
		execSequence = er.Sequence
	}

	query := `
		INSERT INTO decision_audit (
			decision_id, symbol, created_at,
			aggregated_stance, aggregated_confidence, degraded, opinion_count,
			gate_permit, gate_reason, gate_mode,
			exec_accepted, exec_reason, exec_adjusted_size, exec_sequence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		d.ID, d.Symbol, d.CreatedAt,
		string(d.AggregatedStance), d.AggregatedConfidence, boolToUInt8(d.Degraded), uint16(len(d.Opinions)),
		boolToUInt8(d.GateResult.Permit), d.GateResult.Reason, string(d.GateResult.Mode),
		execAccepted, execReason, execAdjusted, execSequence,
	)
	if err != nil {
		return fmt.Errorf("insert decision audit: %w", err)
	}
	return nil
}

// ArchiveViolations records safety violations.
func (s *AuditStore) ArchiveViolations(ctx context.Context, violations []*domain.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO violation_audit (kind, detail, timestamp, decision_id)
	`)
	if err != nil {
		return fmt.Errorf("prepare violation batch: %w", err)
	}
	for _, v := range violations {
		if err := batch.Append(string(v.Kind), v.Detail, v.Timestamp, v.DecisionID); err != nil {
			return fmt.Errorf("append violation: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send violation batch: %w", err)
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
