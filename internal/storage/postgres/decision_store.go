package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// DecisionStore implements storage.DecisionStore using PostgreSQL.
// Appends are single-row inserts, so atomicity comes from the database:
// readers never observe a partial decision.
type DecisionStore struct {
	pool *Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// storedOpinion is the JSONB wire form of a domain.Opinion.
type storedOpinion struct {
	AgentID    string  `json:"agent_id"`
	Role       string  `json:"role"`
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	ProducedAt int64   `json:"produced_at"`
	Degraded   bool    `json:"degraded"`
	Veto       bool    `json:"veto,omitempty"`
}

// Append adds a finalized decision. Returns ErrMissingGateResult if the
// decision was never gated, ErrDuplicateKey if the id already exists.
func (s *DecisionStore) Append(ctx context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" || len(d.Opinions) == 0 {
		return storage.ErrInvalidInput
	}
	if d.GateResult == nil {
		return storage.ErrMissingGateResult
	}

	opinions := make([]storedOpinion, len(d.Opinions))
	for i, op := range d.Opinions {
		opinions[i] = storedOpinion{
			AgentID:    op.AgentID,
			Role:       string(op.Role),
			Stance:     string(op.Stance),
			Confidence: op.Confidence,
			Rationale:  op.Rationale,
			ProducedAt: op.ProducedAt,
			Degraded:   op.Degraded,
			Veto:       op.Veto,
		}
	}
	opinionsJSON, err := json.Marshal(opinions)
	if err != nil {
		return fmt.Errorf("marshal opinions: %w", err)
	}

	query := `
		INSERT INTO decisions (
			decision_id, symbol, created_at,
			opinions, aggregated_stance, aggregated_confidence, degraded,
			gate_permit, gate_reason, gate_mode, gate_checked_at,
			exec_accepted, exec_reason, exec_proposed_size, exec_adjusted_size,
			exec_stop_loss, exec_sequence, exec_reviewed_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18
		)
	`

	var (
		execAccepted *bool
		execReason   *string
		execProposed *float64
		execAdjusted *float64
		execStopLoss *float64
		execSequence *int64
		execReviewed *int64
	)
	if er := d.ExecutionResult; er != nil {
		seq := int64(er.Sequence)
		execAccepted = &er.Accepted
		execReason = &er.Reason
		execProposed = &er.ProposedSize
		execAdjusted = &er.AdjustedSize
		execStopLoss = &er.StopLoss
		execSequence = &seq
		execReviewed = &er.ReviewedAt
	}

	_, err = s.pool.Exec(ctx, query,
		d.ID, d.Symbol, d.CreatedAt,
		opinionsJSON, string(d.AggregatedStance), d.AggregatedConfidence, d.Degraded,
		d.GateResult.Permit, d.GateResult.Reason, string(d.GateResult.Mode), d.GateResult.CheckedAt,
		execAccepted, execReason, execProposed, execAdjusted,
		execStopLoss, execSequence, execReviewed,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Last retrieves at most n decisions for a symbol, most recent first.
func (s *DecisionStore) Last(ctx context.Context, symbol string, n int) ([]*domain.Decision, error) {
	if n <= 0 {
		return nil, nil
	}

	query := selectColumns + `
		FROM decisions
		WHERE symbol = $1
		ORDER BY created_at DESC, decision_id DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Get retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) Get(ctx context.Context, id string) (*domain.Decision, error) {
	query := selectColumns + `
		FROM decisions
		WHERE decision_id = $1
	`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query decision: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, storage.ErrNotFound
	}
	return scanDecision(rows)
}

const selectColumns = `
		SELECT decision_id, symbol, created_at,
			opinions, aggregated_stance, aggregated_confidence, degraded,
			gate_permit, gate_reason, gate_mode, gate_checked_at,
			exec_accepted, exec_reason, exec_proposed_size, exec_adjusted_size,
			exec_stop_loss, exec_sequence, exec_reviewed_at
`

// scanDecision reads one decision row including the JSONB opinions column.
func scanDecision(row pgx.Row) (*domain.Decision, error) {
	var (
		d            domain.Decision
		opinionsJSON []byte
		stance       string
		gate         domain.GateResult
		gateMode     string
		execAccepted *bool
		execReason   *string
		execProposed *float64
		execAdjusted *float64
		execStopLoss *float64
		execSequence *int64
		execReviewed *int64
	)

	err := row.Scan(
		&d.ID, &d.Symbol, &d.CreatedAt,
		&opinionsJSON, &stance, &d.AggregatedConfidence, &d.Degraded,
		&gate.Permit, &gate.Reason, &gateMode, &gate.CheckedAt,
		&execAccepted, &execReason, &execProposed, &execAdjusted,
		&execStopLoss, &execSequence, &execReviewed,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan decision: %w", err)
	}

	d.AggregatedStance = domain.Stance(stance)
	gate.Mode = domain.Mode(gateMode)
	d.GateResult = &gate

	var stored []storedOpinion
	if err := json.Unmarshal(opinionsJSON, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal opinions: %w", err)
	}
	d.Opinions = make([]*domain.Opinion, len(stored))
	for i, op := range stored {
		d.Opinions[i] = &domain.Opinion{
			AgentID:    op.AgentID,
			Role:       domain.AgentRole(op.Role),
			Stance:     domain.Stance(op.Stance),
			Confidence: op.Confidence,
			Rationale:  op.Rationale,
			ProducedAt: op.ProducedAt,
			Degraded:   op.Degraded,
			Veto:       op.Veto,
		}
	}

	if execAccepted != nil {
		er := &domain.ExecutionResult{
			Accepted: *execAccepted,
		}
		if execReason != nil {
			er.Reason = *execReason
		}
		if execProposed != nil {
			er.ProposedSize = *execProposed
		}
		if execAdjusted != nil {
			er.AdjustedSize = *execAdjusted
		}
		if execStopLoss != nil {
			er.StopLoss = *execStopLoss
		}
		if execSequence != nil {
			er.Sequence = uint64(*execSequence)
		}
		if execReviewed != nil {
			er.ReviewedAt = *execReviewed
		}
		d.ExecutionResult = er
	}

	return &d, nil
}
