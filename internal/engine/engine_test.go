package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"tradegate/internal/agent"
	"tradegate/internal/domain"
	"tradegate/internal/execution"
	"tradegate/internal/orchestrator"
	"tradegate/internal/riskgate"
	"tradegate/internal/safety"
	"tradegate/internal/storage/memory"
)

// scriptedAgent returns a fixed opinion.
type scriptedAgent struct {
	id      string
	role    domain.AgentRole
	opinion domain.Opinion
}

func (s *scriptedAgent) ID() string             { return s.id }
func (s *scriptedAgent) Role() domain.AgentRole { return s.role }

func (s *scriptedAgent) ProduceOpinion(_ context.Context, _ *agent.Context) (*domain.Opinion, error) {
	op := s.opinion
	op.AgentID = s.id
	op.Role = s.role
	return &op, nil
}

// fixedMarket serves one snapshot for every symbol.
type fixedMarket struct {
	sentiment float64
	err       error
}

func (m *fixedMarket) Snapshot(_ context.Context, symbol string) (*domain.MarketContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	now := time.Now().UnixMilli()
	return &domain.MarketContext{
		Symbol: symbol,
		Price:  100,
		History: []domain.PricePoint{
			{TimestampMs: now - 2000, Price: 99},
			{TimestampMs: now - 1000, Price: 100},
		},
		Sentiment: m.sentiment,
		AsOf:      now,
	}, nil
}

// recordingArchive captures archived decisions and violations.
type recordingArchive struct {
	decisions  []*domain.Decision
	violations []*domain.Violation
}

func (a *recordingArchive) ArchiveDecision(_ context.Context, d *domain.Decision) error {
	a.decisions = append(a.decisions, d)
	return nil
}

func (a *recordingArchive) ArchiveViolations(_ context.Context, vs []*domain.Violation) error {
	a.violations = append(a.violations, vs...)
	return nil
}

// failingStore rejects every append.
type failingStore struct{}

func (failingStore) Append(context.Context, *domain.Decision) error {
	return errors.New("connection refused")
}

func (failingStore) Last(context.Context, string, int) ([]*domain.Decision, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Get(context.Context, string) (*domain.Decision, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	engine   *Engine
	enforcer *safety.Enforcer
	executor *execution.PaperExecutor
	store    *memory.DecisionStore
	archive  *recordingArchive
}

func newFixture(t *testing.T, stance domain.Stance, confidence float64) *fixture {
	t.Helper()
	discard := log.New(io.Discard, "", 0)

	orch, err := orchestrator.New(orchestrator.Options{
		Research: []agent.Agent{&scriptedAgent{
			id:      "r1",
			role:    domain.RoleResearcher,
			opinion: domain.Opinion{Stance: stance, Confidence: confidence, Rationale: "scripted"},
		}},
		Config: orchestrator.DefaultConfig(),
		Logger: discard,
	})
	if err != nil {
		t.Fatalf("orchestrator.New failed: %v", err)
	}

	enforcer, err := safety.New(safety.Options{Config: safety.DefaultConfig(), Logger: discard})
	if err != nil {
		t.Fatalf("safety.New failed: %v", err)
	}

	executor := execution.NewPaperExecutor(execution.DefaultPaperConfig(), discard)
	gate, err := riskgate.New(riskgate.Options{
		Config:   riskgate.DefaultConfig(),
		Safety:   enforcer,
		Executor: executor,
		Logger:   discard,
	})
	if err != nil {
		t.Fatalf("riskgate.New failed: %v", err)
	}

	store := memory.NewDecisionStore(0)
	archive := &recordingArchive{}
	eng, err := New(Options{
		Config:       Config{Symbols: []string{"BTC/USD"}, BaseNotional: 5},
		Orchestrator: orch,
		Enforcer:     enforcer,
		RiskGate:     gate,
		Store:        store,
		Archive:      archive,
		Market:       &fixedMarket{sentiment: 0.2},
		Outcomes:     executor.Outcomes(),
		Logger:       discard,
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	return &fixture{engine: eng, enforcer: enforcer, executor: executor, store: store, archive: archive}
}

func TestEngine_FullPipelineBuyDecision(t *testing.T) {
	f := newFixture(t, domain.StanceBuy, 0.8)

	d, err := f.engine.EvaluateSymbol(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("EvaluateSymbol failed: %v", err)
	}

	if d.GateResult == nil || !d.GateResult.Permit {
		t.Fatal("Active safety state must permit the decision")
	}
	if d.ExecutionResult == nil || !d.ExecutionResult.Accepted {
		t.Fatal("Permitted buy decision must reach an accepted execution result")
	}
	// A lone buy opinion carries the whole confidence mass, so the
	// proposed size is the full base notional.
	if d.ExecutionResult.AdjustedSize != 5 {
		t.Errorf("AdjustedSize = %f, want full base notional 5", d.ExecutionResult.AdjustedSize)
	}

	stored, err := f.store.Get(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Decision not in history: %v", err)
	}
	if stored.GateResult == nil || stored.ExecutionResult == nil {
		t.Error("Stored decision must carry gate and execution results")
	}

	// The paper fill closes the loop through the outcome path.
	select {
	case o := <-f.executor.Outcomes():
		f.engine.applyOutcome(o)
	case <-time.After(time.Second):
		t.Fatal("Paper executor produced no outcome")
	}
	if f.enforcer.Status().ConsecutiveLosses != 0 {
		t.Error("Zero-pnl paper fill must not count as a loss")
	}

	if len(f.archive.decisions) != 1 {
		t.Errorf("Archive received %d decisions, want 1", len(f.archive.decisions))
	}
}

func TestEngine_HoldDecisionSkipsReview(t *testing.T) {
	f := newFixture(t, domain.StanceHold, 0.9)

	d, err := f.engine.EvaluateSymbol(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("EvaluateSymbol failed: %v", err)
	}
	if d.ExecutionResult != nil {
		t.Error("Hold decision must not be reviewed for execution")
	}
	if _, err := f.store.Get(context.Background(), d.ID); err != nil {
		t.Errorf("Hold decision must still be persisted: %v", err)
	}
}

func TestEngine_DeniedDecisionIsPersistedWithoutExecution(t *testing.T) {
	f := newFixture(t, domain.StanceBuy, 0.8)
	f.enforcer.Pause("test pause")

	d, err := f.engine.EvaluateSymbol(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("EvaluateSymbol failed: %v", err)
	}
	if d.GateResult.Permit {
		t.Fatal("Paused safety state must deny")
	}
	if d.ExecutionResult != nil {
		t.Error("Denied decision must not be reviewed")
	}
	if _, err := f.store.Get(context.Background(), d.ID); err != nil {
		t.Errorf("Denied decision must still be persisted: %v", err)
	}
	if len(f.archive.violations) == 0 {
		t.Error("Manual pause violation must reach the archive")
	}
}

func TestEngine_StorageFailureFallsBackToMemory(t *testing.T) {
	f := newFixture(t, domain.StanceBuy, 0.5)
	f.engine.store = failingStore{}

	d, err := f.engine.EvaluateSymbol(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("EvaluateSymbol must survive a storage failure: %v", err)
	}

	if _, err := f.engine.fallback.Get(context.Background(), d.ID); err != nil {
		t.Errorf("Decision must land in the fallback store: %v", err)
	}
}

func TestEngine_MarketFailureSurfacesError(t *testing.T) {
	f := newFixture(t, domain.StanceBuy, 0.5)
	f.engine.market = &fixedMarket{err: errors.New("feed down")}

	if _, err := f.engine.EvaluateSymbol(context.Background(), "BTC/USD"); err == nil {
		t.Fatal("Expected error when the market source fails")
	}
}

func TestUntilNextUTCDay(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	if got := untilNextUTCDay(now); got != 30*time.Minute {
		t.Errorf("untilNextUTCDay = %v, want 30m", got)
	}

	midnight := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := untilNextUTCDay(midnight); got != 24*time.Hour {
		t.Errorf("untilNextUTCDay at midnight = %v, want 24h", got)
	}
}
