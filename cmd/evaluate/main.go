// Package main runs one evaluation cycle and prints the resulting decision
// as JSON. Useful for inspecting agent behavior without the full service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"tradegate/internal/agent"
	"tradegate/internal/engine"
	"tradegate/internal/execution"
	"tradegate/internal/market"
	"tradegate/internal/orchestrator"
	"tradegate/internal/privacy"
	"tradegate/internal/riskgate"
	"tradegate/internal/safety"
	"tradegate/internal/storage/memory"
)

func main() {
	symbol := flag.String("symbol", "BTC/USD", "Symbol to evaluate")
	steps := flag.Int("steps", 5, "Market steps to simulate before the evaluated one")
	agentTimeout := flag.Duration("agent-timeout", 5*time.Second, "Per-agent call timeout")
	minSignal := flag.Float64("min-signal", 0.3, "Minimum winning confidence sum for a directional stance")
	seed := flag.Int64("seed", 1, "Market simulation seed")
	verbose := flag.Bool("verbose", false, "Log component activity to stderr")
	flag.Parse()

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "[evaluate] ", log.LstdFlags)
	}

	ctx := context.Background()

	enforcer, err := safety.New(safety.Options{Config: safety.DefaultConfig(), Logger: logger})
	if err != nil {
		fatal("create safety enforcer: %v", err)
	}

	cfg := orchestrator.DefaultConfig()
	cfg.AgentTimeout = *agentTimeout
	cfg.MinSignal = *minSignal
	orch, err := orchestrator.New(orchestrator.Options{
		Research: []agent.Agent{
			agent.NewResearcher("researcher-1", 0),
			agent.NewOptimizer("optimizer-1", 0),
		},
		Debate: []agent.Agent{
			agent.NewBull("bull-1"),
			agent.NewBear("bear-1"),
		},
		Synthesis: []agent.Agent{
			agent.NewTechnical("technical-1", 0, 0),
			agent.NewRisk("risk-1", 0, 0),
			agent.NewPrivacy("privacy-1", privacy.NewScanner()),
		},
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		fatal("create orchestrator: %v", err)
	}

	executor := execution.NewPaperExecutor(execution.DefaultPaperConfig(), logger)
	gate, err := riskgate.New(riskgate.Options{
		Config:   riskgate.DefaultConfig(),
		Safety:   enforcer,
		Executor: executor,
		Logger:   logger,
	})
	if err != nil {
		fatal("create risk gate: %v", err)
	}

	source := market.NewRandomWalkSource(*seed)
	eng, err := engine.New(engine.Options{
		Config:       engine.Config{Symbols: []string{*symbol}, BaseNotional: 5},
		Orchestrator: orch,
		Enforcer:     enforcer,
		RiskGate:     gate,
		Store:        memory.NewDecisionStore(0),
		Market:       source,
		Outcomes:     executor.Outcomes(),
		Logger:       logger,
	})
	if err != nil {
		fatal("create engine: %v", err)
	}

	// Warm the simulated market so the technical agent has history.
	for i := 0; i < *steps; i++ {
		if _, err := source.Snapshot(ctx, *symbol); err != nil {
			fatal("warm market: %v", err)
		}
	}

	d, err := eng.EvaluateSymbol(ctx, *symbol)
	if err != nil {
		fatal("evaluate: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		fatal("encode decision: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
