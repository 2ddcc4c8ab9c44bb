// Package riskgate sizes and forwards permitted decisions. Review applies a
// fixed rule order, assigns acceptance sequence numbers, and enforces that
// trade outcomes reach the safety counters in acceptance order.
package riskgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/execution"
)

// Config holds the sizing limits.
type Config struct {
	MaxPositionNotional float64 // per-trade clamp on order size
	StopLossFraction    float64 // stop distance attached to every accepted order
	PendingLimit        int     // bound on the out-of-order outcome buffer
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositionNotional: 5,
		StopLossFraction:    0.02,
		PendingLimit:        64,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.MaxPositionNotional <= 0 {
		return errors.New("max position notional must be positive")
	}
	if c.StopLossFraction <= 0 || c.StopLossFraction >= 1 {
		return errors.New("stop loss fraction must be within (0, 1)")
	}
	if c.PendingLimit <= 0 {
		return errors.New("pending limit must be positive")
	}
	return nil
}

var (
	// ErrOutcomeOutOfOrder reports an outcome that arrived ahead of an
	// earlier acceptance; it has been buffered, not applied.
	ErrOutcomeOutOfOrder = errors.New("trade outcome out of order, re-queued")

	// ErrUnknownSequence reports an outcome for a sequence the gate never
	// issued, or one whose decision reference does not match.
	ErrUnknownSequence = errors.New("trade outcome for unknown sequence")

	// ErrDuplicateOutcome reports a second outcome for an already-consumed
	// sequence.
	ErrDuplicateOutcome = errors.New("trade outcome already applied")

	// ErrPendingOverflow reports that the out-of-order buffer is full.
	ErrPendingOverflow = errors.New("pending outcome buffer full")

	// ErrNotPermitted reports a review attempt on a decision the safety
	// gate did not permit.
	ErrNotPermitted = errors.New("decision was not permitted by the safety gate")
)

// Safety is the slice of enforcer behavior the risk gate needs.
type Safety interface {
	Status() domain.SafetyStatus
	DailyLoss() float64
	DailyLossCap() float64
	ApplyOutcome(o *domain.TradeOutcome)
}

// Gate reviews permitted decisions and owns outcome ordering.
type Gate struct {
	cfg      Config
	safety   Safety
	executor execution.Executor
	logger   *log.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastIssued uint64                         // highest acceptance sequence handed out
	nextApply  uint64                         // next sequence whose outcome may be applied
	expected   map[uint64]string              // sequence → decision id, removed once consumed
	pending    map[uint64]*domain.TradeOutcome // early outcomes waiting for their turn
}

// Options for creating a Gate.
type Options struct {
	Config   Config
	Safety   Safety
	Executor execution.Executor
	Logger   *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a Gate with no acceptances outstanding.
func New(opts Options) (*Gate, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("riskgate config: %w", err)
	}
	if opts.Safety == nil {
		return nil, errors.New("safety state is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		cfg:       opts.Config,
		safety:    opts.Safety,
		executor:  opts.Executor,
		logger:    logger,
		now:       now,
		nextApply: 1,
		expected:  make(map[uint64]string),
		pending:   make(map[uint64]*domain.TradeOutcome),
	}, nil
}

// Review applies the rules in order; the first failing rule rejects. On
// acceptance the clamped order is forwarded to the executor and exactly one
// TradeOutcome is registered for it. Attaches the result to the decision.
func (g *Gate) Review(ctx context.Context, d *domain.Decision, proposedSize float64) (*domain.ExecutionResult, error) {
	if d.GateResult == nil || !d.GateResult.Permit {
		return nil, ErrNotPermitted
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result := &domain.ExecutionResult{
		ProposedSize: proposedSize,
		ReviewedAt:   g.now().UnixMilli(),
	}
	d.ExecutionResult = result

	if status := g.safety.Status(); status.Mode == domain.ModePaused {
		// Surface the trigger that paused us, so callers see
		// "daily_loss_limit" rather than a generic "paused".
		result.Reason = status.PauseReason
		if result.Reason == "" {
			result.Reason = domain.RejectReasonPaused
		}
		return result, nil
	}

	// Worst case the whole position is lost; reject when that would push
	// today's realized loss past the cap.
	if g.safety.DailyLoss()+proposedSize > g.safety.DailyLossCap() {
		result.Reason = domain.RejectReasonDailyLossLimit
		return result, nil
	}

	adjusted := proposedSize
	if adjusted > g.cfg.MaxPositionNotional {
		adjusted = g.cfg.MaxPositionNotional
		g.logger.Printf("clamped order for decision %s from %.4f to %.4f", d.ID, proposedSize, adjusted)
	}

	g.lastIssued++
	seq := g.lastIssued

	order := &execution.Order{
		DecisionID: d.ID,
		Symbol:     d.Symbol,
		Side:       d.AggregatedStance,
		Size:       adjusted,
		StopLoss:   g.cfg.StopLossFraction,
		Sequence:   seq,
	}
	if err := g.executor.Execute(ctx, order); err != nil {
		// The sequence was never handed to the venue; releasing it keeps
		// the apply cursor from stalling on an outcome that will not come.
		g.logger.Printf("execution handoff for decision %s failed: %v", d.ID, err)
		g.drainLocked()
		result.Reason = "execution_error"
		return result, fmt.Errorf("execute order seq %d: %w", seq, err)
	}
	g.expected[seq] = d.ID

	result.Accepted = true
	result.AdjustedSize = adjusted
	result.StopLoss = g.cfg.StopLossFraction
	result.Sequence = seq
	return result, nil
}

// ApplyOutcome consumes one outcome. In-order outcomes go straight to the
// safety counters; early ones are buffered and returned as out-of-order so
// the caller can log the violation. Each sequence is consumed exactly once.
func (g *Gate) ApplyOutcome(o *domain.TradeOutcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if o.Sequence == 0 || o.Sequence > g.lastIssued {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, o.Sequence)
	}
	wantID, ok := g.expected[o.Sequence]
	if !ok {
		return fmt.Errorf("%w: sequence %d", ErrDuplicateOutcome, o.Sequence)
	}
	if wantID != o.DecisionID {
		return fmt.Errorf("%w: sequence %d belongs to decision %s, outcome names %s",
			ErrUnknownSequence, o.Sequence, wantID, o.DecisionID)
	}

	if o.Sequence != g.nextApply {
		if len(g.pending) >= g.cfg.PendingLimit {
			return fmt.Errorf("%w: dropping outcome seq %d", ErrPendingOverflow, o.Sequence)
		}
		g.pending[o.Sequence] = o
		return fmt.Errorf("%w: got seq %d, next is %d", ErrOutcomeOutOfOrder, o.Sequence, g.nextApply)
	}

	g.safety.ApplyOutcome(o)
	delete(g.expected, o.Sequence)
	g.nextApply++
	g.drainLocked()
	return nil
}

// PendingOutcomes reports how many early outcomes are buffered.
func (g *Gate) PendingOutcomes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// drainLocked advances the apply cursor: buffered outcomes whose turn has
// come are applied, and sequences that will never produce an outcome (failed
// executor handoff) are skipped.
func (g *Gate) drainLocked() {
	for g.nextApply <= g.lastIssued {
		if o, ok := g.pending[g.nextApply]; ok {
			g.safety.ApplyOutcome(o)
			delete(g.pending, g.nextApply)
			delete(g.expected, g.nextApply)
			g.nextApply++
			continue
		}
		if _, awaited := g.expected[g.nextApply]; !awaited {
			g.nextApply++
			continue
		}
		return
	}
}
