package domain

// Decision is the orchestrator's finalized aggregate judgment for one
// evaluation of one symbol, plus its gate and execution outcomes.
// Mutated exactly twice after creation: the safety gate attaches GateResult,
// the risk gate attaches ExecutionResult. Never mutated after history append.
type Decision struct {
	ID        string // deterministic hash, see idhash.ComputeDecisionID
	Symbol    string
	CreatedAt int64 // Unix timestamp in milliseconds

	Opinions             []*Opinion // ordered by stage, then agent id; never empty
	AggregatedStance     Stance
	AggregatedConfidence float64 // [0, 1]
	Degraded             bool    // at least one opinion was a substituted default

	GateResult      *GateResult
	ExecutionResult *ExecutionResult // nil until reviewed, or when gate denied
}

// GateResult is the safety gate's verdict on a decision.
type GateResult struct {
	Permit    bool
	Reason    string // trigger kind when denied, "active" / "override" when permitted
	Mode      Mode   // safety mode observed at gate time
	CheckedAt int64
}

// ExecutionResult is the risk gate's verdict plus sizing parameters.
type ExecutionResult struct {
	Accepted     bool
	Reason       string  // rejection reason code, empty on acceptance
	ProposedSize float64 // notional requested by the decision
	AdjustedSize float64 // after per-trade clamp, 0 on rejection
	StopLoss     float64 // stop price distance as fraction of entry
	Sequence     uint64  // acceptance sequence, 0 on rejection
	ReviewedAt   int64
}

// Risk gate rejection reason codes.
const (
	RejectReasonPaused         = "paused"
	RejectReasonDailyLossLimit = "daily_loss_limit"
)

// Gate permit reason codes.
const (
	GateReasonActive   = "active"
	GateReasonOverride = "override"
)
