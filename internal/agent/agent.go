// Package agent provides the opinion-producing units of the decision core.
// Each agent implements a single capability: produce one opinion for one
// market snapshot. Variants: Researcher, Optimizer, Bull, Bear, Technical,
// Risk, Privacy.
package agent

import (
	"context"

	"tradegate/internal/domain"
)

// Context holds all inputs available to one agent call.
type Context struct {
	Market *domain.MarketContext

	// Prior holds opinions produced by earlier stages. Debate agents see the
	// research output; synthesis agents see the full set so far. Read-only.
	Prior []*domain.Opinion
}

// Agent produces one opinion per evaluation.
type Agent interface {
	// ID returns a unique agent identifier, stable across evaluations.
	ID() string

	// Role returns the capability this agent implements.
	Role() domain.AgentRole

	// ProduceOpinion evaluates the input and returns an opinion, or an error
	// when the agent cannot form one. Errors are recovered by the
	// orchestrator via degraded substitution and are never fatal.
	ProduceOpinion(ctx context.Context, in *Context) (*domain.Opinion, error)
}

// clamp01 bounds a confidence value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
