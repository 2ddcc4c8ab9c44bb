// Package execution is the boundary to the external execution collaborator.
// The core hands over accepted orders and receives TradeOutcome events back;
// everything about venues, routing, and fills lives on the other side.
package execution

import (
	"context"
	"errors"

	"tradegate/internal/domain"
)

// Order is an accepted, sized trade forwarded for execution.
type Order struct {
	DecisionID string
	Symbol     string
	Side       domain.Stance // BUY or SELL, never HOLD
	Size       float64       // notional, after the risk gate's clamp
	StopLoss   float64       // stop distance as fraction of entry
	Sequence   uint64        // risk gate acceptance sequence
}

// ErrInvalidOrder is returned for orders that cannot be executed as given.
var ErrInvalidOrder = errors.New("invalid order")

// Executor places one order with the external venue. Execute returns once
// the order is handed off; the fill arrives later as a TradeOutcome.
type Executor interface {
	Execute(ctx context.Context, order *Order) error
}
