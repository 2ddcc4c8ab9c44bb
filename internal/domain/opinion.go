package domain

// Stance is an agent's directional view on a symbol.
type Stance string

const (
	StanceBuy  Stance = "BUY"
	StanceSell Stance = "SELL"
	StanceHold Stance = "HOLD"
)

// AgentRole identifies the capability an agent implements.
type AgentRole string

const (
	RoleResearcher AgentRole = "RESEARCHER"
	RoleOptimizer  AgentRole = "OPTIMIZER"
	RoleBull       AgentRole = "BULL"
	RoleBear       AgentRole = "BEAR"
	RoleTechnical  AgentRole = "TECHNICAL"
	RoleRisk       AgentRole = "RISK"
	RolePrivacy    AgentRole = "PRIVACY"
)

// Opinion is one agent's stance/confidence/rationale for a symbol at a point
// in time. Immutable once created; owned by the evaluation that created it.
type Opinion struct {
	AgentID    string  // unique agent identifier
	Role       AgentRole
	Stance     Stance
	Confidence float64 // [0, 1]
	Rationale  string  // free-form explanation text
	ProducedAt int64   // Unix timestamp in milliseconds
	Degraded   bool    // true if this is a substituted default (timeout/failure)
	Veto       bool    // synthesis-stage veto: forces HOLD regardless of vote
}

// DegradedOpinion returns the substituted default used when an agent times
// out or fails: HOLD with zero confidence, flagged degraded.
func DegradedOpinion(agentID string, role AgentRole, producedAt int64) *Opinion {
	return &Opinion{
		AgentID:    agentID,
		Role:       role,
		Stance:     StanceHold,
		Confidence: 0,
		Rationale:  "substituted default: agent timed out or failed",
		ProducedAt: producedAt,
		Degraded:   true,
	}
}
