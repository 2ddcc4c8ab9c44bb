// Package orchestrator runs the multi-agent evaluation workflow.
// Stages execute in a fixed dependency order: research → debate → synthesis,
// with a synchronization barrier at each stage boundary. Aggregation is a
// pure function of the collected opinions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/agent"
	"tradegate/internal/domain"
	"tradegate/internal/idhash"
)

// Config holds orchestrator tuning values.
type Config struct {
	// AgentTimeout bounds each agent call. On timeout the agent's opinion
	// is replaced with a degraded default.
	AgentTimeout time.Duration

	// MinSignal is the minimum winning confidence sum required for a
	// non-hold aggregate stance.
	MinSignal float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		AgentTimeout: 5 * time.Second,
		MinSignal:    0.3,
	}
}

// Validate reports configuration errors. Invalid config is fatal at startup.
func (c Config) Validate() error {
	if c.AgentTimeout <= 0 {
		return errors.New("agent timeout must be positive")
	}
	if c.MinSignal < 0 {
		return errors.New("min signal must be non-negative")
	}
	return nil
}

// Orchestrator coordinates the staged agent workflow for one symbol at a
// time. Safe for concurrent Evaluate calls; each call owns its opinion set.
type Orchestrator struct {
	research  []agent.Agent
	debate    []agent.Agent
	synthesis []agent.Agent
	cfg       Config
	logger    *log.Logger

	evalSeq atomic.Uint64 // distinguishes decisions created in the same millisecond
}

// Options for creating an Orchestrator.
type Options struct {
	// Research agents run first with no dependency on other agents.
	Research []agent.Agent
	// Debate agents consume the research output. One round, no iteration.
	Debate []agent.Agent
	// Synthesis agents consume the full opinion set and may veto.
	Synthesis []agent.Agent

	Config Config
	Logger *log.Logger
}

// New creates an Orchestrator. At least one research agent is required so
// every decision carries a non-empty opinion sequence.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if len(opts.Research) == 0 {
		return nil, errors.New("at least one research agent is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		research:  opts.Research,
		debate:    opts.Debate,
		synthesis: opts.Synthesis,
		cfg:       opts.Config,
		logger:    logger,
	}, nil
}

// Evaluate runs the full workflow for one market snapshot and returns a
// decision with aggregated stance and confidence. Agent failures never fail
// the evaluation; they degrade it.
func (o *Orchestrator) Evaluate(ctx context.Context, market *domain.MarketContext) (*domain.Decision, error) {
	if market == nil || market.Symbol == "" {
		return nil, errors.New("market context with symbol is required")
	}

	createdAt := time.Now().UnixMilli()

	// Stage 1: research. No prior opinions.
	opinions := o.runStage(ctx, o.research, &agent.Context{Market: market})

	// Stage 2: debate, consuming frozen research output.
	opinions = append(opinions, o.runStage(ctx, o.debate, &agent.Context{
		Market: market,
		Prior:  opinions,
	})...)

	// Stage 3: synthesis, consuming the full set so far. Research and
	// debate results are frozen once this stage begins.
	opinions = append(opinions, o.runStage(ctx, o.synthesis, &agent.Context{
		Market: market,
		Prior:  opinions,
	})...)

	stance, confidence := Aggregate(opinions, o.cfg.MinSignal)

	degraded := false
	for _, op := range opinions {
		if op.Degraded {
			degraded = true
			break
		}
	}
	if degraded {
		o.logger.Printf("degraded decision for %s: at least one agent timed out or failed", market.Symbol)
	}

	return &domain.Decision{
		ID:                   idhash.ComputeDecisionID(market.Symbol, createdAt, o.evalSeq.Add(1)),
		Symbol:               market.Symbol,
		CreatedAt:            createdAt,
		Opinions:             opinions,
		AggregatedStance:     stance,
		AggregatedConfidence: confidence,
		Degraded:             degraded,
	}, nil
}

// runStage executes one stage's agents concurrently and blocks until every
// agent has completed or timed out. Results come back in agent order, so the
// opinion sequence is deterministic regardless of completion order.
func (o *Orchestrator) runStage(ctx context.Context, agents []agent.Agent, in *agent.Context) []*domain.Opinion {
	if len(agents) == 0 {
		return nil
	}

	results := make([]*domain.Opinion, len(agents))
	var g errgroup.Group
	for i, a := range agents {
		g.Go(func() error {
			results[i] = o.callAgent(ctx, a, in)
			return nil
		})
	}
	g.Wait() // stage barrier; callAgent never returns an error

	return results
}

// callAgent runs one agent under the per-agent timeout. A late or failed
// result is discarded and substituted with a degraded default; it can never
// retroactively change a stage that has already completed.
func (o *Orchestrator) callAgent(ctx context.Context, a agent.Agent, in *agent.Context) *domain.Opinion {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()

	type result struct {
		op  *domain.Opinion
		err error
	}
	ch := make(chan result, 1)
	go func() {
		op, err := a.ProduceOpinion(callCtx, in)
		ch <- result{op: op, err: err}
	}()

	select {
	case <-callCtx.Done():
		o.logger.Printf("agent %s timed out after %v, substituting degraded opinion", a.ID(), o.cfg.AgentTimeout)
		return domain.DegradedOpinion(a.ID(), a.Role(), time.Now().UnixMilli())
	case res := <-ch:
		if res.err != nil || res.op == nil {
			o.logger.Printf("agent %s failed (%v), substituting degraded opinion", a.ID(), res.err)
			return domain.DegradedOpinion(a.ID(), a.Role(), time.Now().UnixMilli())
		}
		return res.op
	}
}
