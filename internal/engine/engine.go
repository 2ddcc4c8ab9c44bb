// Package engine is the control plane: it schedules evaluations and routes
// each decision through the safety gate, the risk gate, history, and the
// audit archive, then feeds trade outcomes back into the safety counters.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/observability"
	"tradegate/internal/orchestrator"
	"tradegate/internal/riskgate"
	"tradegate/internal/safety"
	"tradegate/internal/storage"
	"tradegate/internal/storage/memory"
)

// MarketSource supplies one market snapshot per evaluation.
type MarketSource interface {
	Snapshot(ctx context.Context, symbol string) (*domain.MarketContext, error)
}

// Config holds engine tuning values.
type Config struct {
	// Symbols to evaluate each cycle.
	Symbols []string
	// EvalInterval is the time between evaluation cycles. Zero disables
	// the scheduler; EvaluateSymbol can still be driven manually.
	EvalInterval time.Duration
	// BaseNotional scales aggregated confidence into a proposed order
	// size: proposed = BaseNotional * confidence.
	BaseNotional float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EvalInterval: time.Minute,
		BaseNotional: 5,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("at least one symbol is required")
	}
	if c.BaseNotional <= 0 {
		return errors.New("base notional must be positive")
	}
	return nil
}

// Engine wires the decision pipeline together.
type Engine struct {
	cfg          Config
	orchestrator *orchestrator.Orchestrator
	enforcer     *safety.Enforcer
	riskGate     *riskgate.Gate
	store        storage.DecisionStore
	archive      storage.AuditArchive // optional, best-effort
	market       MarketSource
	outcomes     <-chan *domain.TradeOutcome
	logger       *log.Logger

	// fallback takes over history appends when the durable store fails.
	fallback *memory.DecisionStore

	archivedViolations int // cursor into the enforcer's violation log
}

// Options for creating an Engine.
type Options struct {
	Config       Config
	Orchestrator *orchestrator.Orchestrator
	Enforcer     *safety.Enforcer
	RiskGate     *riskgate.Gate
	Store        storage.DecisionStore
	Archive      storage.AuditArchive
	Market       MarketSource
	Outcomes     <-chan *domain.TradeOutcome
	Logger       *log.Logger
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if opts.Orchestrator == nil || opts.Enforcer == nil || opts.RiskGate == nil {
		return nil, errors.New("orchestrator, enforcer, and risk gate are required")
	}
	if opts.Store == nil {
		return nil, errors.New("decision store is required")
	}
	if opts.Market == nil {
		return nil, errors.New("market source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:          opts.Config,
		orchestrator: opts.Orchestrator,
		enforcer:     opts.Enforcer,
		riskGate:     opts.RiskGate,
		store:        opts.Store,
		archive:      opts.Archive,
		market:       opts.Market,
		outcomes:     opts.Outcomes,
		logger:       logger,
		fallback:     memory.NewDecisionStore(memory.DefaultCapacity),
	}, nil
}

// Run drives the engine until the context is cancelled: periodic evaluation
// cycles, outcome application, and the daily loss reset at 00:00 UTC. All
// pipeline work happens on this goroutine, so cycles never overlap.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("engine started: %d symbol(s), interval %v", len(e.cfg.Symbols), e.cfg.EvalInterval)

	var tickCh <-chan time.Time
	if e.cfg.EvalInterval > 0 {
		ticker := time.NewTicker(e.cfg.EvalInterval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	dayTimer := time.NewTimer(untilNextUTCDay(time.Now()))
	defer dayTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Printf("engine stopping")
			return ctx.Err()

		case <-tickCh:
			e.runCycle(ctx)

		case o, ok := <-e.outcomes:
			if !ok {
				e.logger.Printf("outcome channel closed")
				return errors.New("outcome channel closed")
			}
			e.applyOutcome(o)

		case <-dayTimer.C:
			e.enforcer.ResetDaily()
			dayTimer.Reset(untilNextUTCDay(time.Now()))
		}
	}
}

// runCycle evaluates every configured symbol once.
func (e *Engine) runCycle(ctx context.Context) {
	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.EvaluateSymbol(ctx, symbol); err != nil {
			e.logger.Printf("evaluation for %s failed: %v", symbol, err)
			e.enforcer.RecordErrorEvent(time.Now())
		}
	}
}

// EvaluateSymbol runs one decision through the full pipeline: orchestrate,
// gate, review, persist, archive. The returned decision always carries a
// gate result; it carries an execution result only when the gate permitted
// a directional stance.
func (e *Engine) EvaluateSymbol(ctx context.Context, symbol string) (*domain.Decision, error) {
	started := time.Now()

	market, err := e.market.Snapshot(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("market snapshot for %s: %w", symbol, err)
	}

	d, err := e.orchestrator.Evaluate(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", symbol, err)
	}
	observability.RecordDecision(string(d.AggregatedStance), d.Degraded, time.Since(started).Seconds())

	gate := e.enforcer.Gate(d, market.Sentiment)
	status := e.enforcer.Status()
	observability.UpdateSafetyMode(string(status.Mode))
	observability.DefaultMetrics.DailyLoss.Set(status.DailyRealizedLoss)
	observability.DefaultMetrics.ErrorBurstSize.Set(float64(status.ErrorsLast60s))
	if !gate.Permit {
		observability.RecordGateDenial(gate.Reason)
		e.logger.Printf("decision %s denied by safety gate: %s", d.ID, gate.Reason)
	}

	if gate.Permit && d.AggregatedStance != domain.StanceHold {
		proposed := e.cfg.BaseNotional * d.AggregatedConfidence
		res, err := e.riskGate.Review(ctx, d, proposed)
		if err != nil {
			e.logger.Printf("review for decision %s failed: %v", d.ID, err)
			e.enforcer.RecordErrorEvent(time.Now())
		}
		if res != nil {
			observability.RecordReview(res.Accepted, res.Accepted && res.AdjustedSize < res.ProposedSize)
		}
	}

	e.persist(ctx, d)
	e.archiveDecision(ctx, d)
	observability.DefaultMetrics.LastEvaluation.Set(float64(time.Now().Unix()))
	return d, nil
}

// applyOutcome routes one trade outcome through the risk gate's ordering
// check. Out-of-order outcomes are buffered there and retried implicitly
// when their predecessor arrives.
func (e *Engine) applyOutcome(o *domain.TradeOutcome) {
	err := e.riskGate.ApplyOutcome(o)
	switch {
	case err == nil:
		observability.RecordOutcomeApplied()
	case errors.Is(err, riskgate.ErrOutcomeOutOfOrder):
		observability.RecordOutcomeOutOfOrder()
		e.logger.Printf("outcome ordering violation: %v", err)
	default:
		e.logger.Printf("discarding outcome for decision %s: %v", o.DecisionID, err)
	}
	observability.DefaultMetrics.PendingOutcomes.Set(float64(e.riskGate.PendingOutcomes()))
}

// persist appends the decision to history. A failing durable store degrades
// to the in-memory fallback so the pipeline keeps running.
func (e *Engine) persist(ctx context.Context, d *domain.Decision) {
	err := e.store.Append(ctx, d)
	observability.RecordHistoryAppend(err)
	if err == nil {
		return
	}
	e.logger.Printf("warning: durable history append for %s failed, falling back to memory: %v", d.ID, err)
	if fbErr := e.fallback.Append(ctx, d); fbErr != nil {
		e.logger.Printf("fallback history append for %s failed: %v", d.ID, fbErr)
	}
}

// archiveDecision mirrors the decision and any new violations into the
// analytics archive. Best-effort: archive failures never block the pipeline.
func (e *Engine) archiveDecision(ctx context.Context, d *domain.Decision) {
	if e.archive == nil {
		return
	}
	if err := e.archive.ArchiveDecision(ctx, d); err != nil {
		e.logger.Printf("archiving decision %s failed: %v", d.ID, err)
	}

	violations := e.enforcer.Violations()
	if len(violations) > e.archivedViolations {
		fresh := violations[e.archivedViolations:]
		for _, v := range fresh {
			observability.RecordViolation(string(v.Kind))
		}
		if err := e.archive.ArchiveViolations(ctx, fresh); err != nil {
			e.logger.Printf("archiving %d violation(s) failed: %v", len(fresh), err)
			return
		}
		e.archivedViolations = len(violations)
	}
}

// Status exposes the safety snapshot for operator queries.
func (e *Engine) Status() domain.SafetyStatus {
	return e.enforcer.Status()
}

// untilNextUTCDay returns the duration to the next 00:00 UTC boundary.
func untilNextUTCDay(now time.Time) time.Duration {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(utc)
}
