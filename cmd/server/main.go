// Package main runs the decision-gating service: the agent orchestrator on a
// schedule, the safety enforcer and risk gate in the decision path, durable
// history in PostgreSQL with a ClickHouse audit archive, and an HTTP surface
// for operators.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tradegate/internal/agent"
	"tradegate/internal/engine"
	"tradegate/internal/execution"
	"tradegate/internal/market"
	"tradegate/internal/observability"
	"tradegate/internal/operator"
	"tradegate/internal/orchestrator"
	"tradegate/internal/privacy"
	"tradegate/internal/riskgate"
	"tradegate/internal/safety"
	"tradegate/internal/storage"
	chstore "tradegate/internal/storage/clickhouse"
	"tradegate/internal/storage/memory"
	"tradegate/internal/storage/migrations"
	pgstore "tradegate/internal/storage/postgres"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/domain"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory history instead of PostgreSQL")
	symbols := flag.String("symbols", envOr("SYMBOLS", "BTC/USD"), "Comma-separated symbols to evaluate")
	outcomeFeed := flag.String("outcome-feed", os.Getenv("OUTCOME_FEED_ENDPOINT"), "WebSocket endpoint for external trade outcomes (optional)")
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	evalInterval := flag.Duration("eval-interval", time.Minute, "Evaluation cycle interval")
	agentTimeout := flag.Duration("agent-timeout", 5*time.Second, "Per-agent call timeout")
	minSignal := flag.Float64("min-signal", 0.3, "Minimum winning confidence sum for a directional stance")
	baseNotional := flag.Float64("base-notional", 5, "Notional scale applied to aggregated confidence")
	maxNotional := flag.Float64("max-notional", 5, "Per-trade maximum notional")
	stopLoss := flag.Float64("stop-loss", 0.02, "Stop distance as fraction of entry")
	dailyLossCap := flag.Float64("daily-loss-cap", 10, "Daily realized loss cap")
	overrideFor := flag.Duration("override-duration", 15*time.Minute, "How long a manual override stays in effect")
	marketSeed := flag.Int64("market-seed", time.Now().UnixNano(), "Seed for the simulated market source")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory history)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Safety enforcer
	safetyCfg := safety.DefaultConfig()
	safetyCfg.DailyLossCap = *dailyLossCap
	safetyCfg.OverrideDuration = *overrideFor
	enforcer, err := safety.New(safety.Options{
		Config: safetyCfg,
		Logger: log.New(os.Stdout, "[safety] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create safety enforcer: %v", err)
	}

	// Orchestrator with the full agent roster
	scanner := privacy.NewScanner()
	orchCfg := orchestrator.DefaultConfig()
	orchCfg.AgentTimeout = *agentTimeout
	orchCfg.MinSignal = *minSignal
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
			agent.NewPrivacy("privacy-1", scanner),
		},
		Config: orchCfg,
		Logger: log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Risk gate over the paper executor
	executor := execution.NewPaperExecutor(execution.DefaultPaperConfig(), log.New(os.Stdout, "[paper] ", log.LstdFlags))
	gateCfg := riskgate.DefaultConfig()
	gateCfg.MaxPositionNotional = *maxNotional
	gateCfg.StopLossFraction = *stopLoss
	gate, err := riskgate.New(riskgate.Options{
		Config:   gateCfg,
		Safety:   enforcer,
		Executor: executor,
		Logger:   log.New(os.Stdout, "[riskgate] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create risk gate: %v", err)
	}

	// Outcome sources: paper fills always, external feed when configured
	outcomes := make(chan *domain.TradeOutcome, 1024)
	go forward(ctx, executor.Outcomes(), outcomes)
	if *outcomeFeed != "" {
		feed, err := execution.NewOutcomeFeed(ctx, *outcomeFeed, nil, log.New(os.Stdout, "[feed] ", log.LstdFlags))
		if err != nil {
			logger.Fatalf("Failed to connect outcome feed: %v", err)
		}
		defer feed.Close()
		go forward(ctx, feed.Outcomes(), outcomes)
	}

	eng, err := engine.New(engine.Options{
		Config: engine.Config{
			Symbols:      symbolList,
			EvalInterval: *evalInterval,
			BaseNotional: *baseNotional,
		},
		Orchestrator: orch,
		Enforcer:     enforcer,
		RiskGate:     gate,
		Store:        store,
		Archive:      archive,
		Market:       market.NewRandomWalkSource(*marketSeed),
		Outcomes:     outcomes,
		Logger:       log.New(os.Stdout, "[engine] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}

	dispatcher, err := operator.New(operator.Options{
		Enforcer: enforcer,
		Logger:   log.New(os.Stdout, "[operator] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create operator dispatcher: %v", err)
	}

	// Handle shutdown signals
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go startHTTPServer(*httpAddr, eng, dispatcher, store, logger)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(runCtx) })
	g.Go(func() error { return dispatcher.Run(runCtx) })

	err = g.Wait()
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores builds the history store and audit archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (storage.DecisionStore, storage.AuditArchive, func(), error) {
	if useMemory {
		logger.Println("Using in-memory history store")
		return memory.NewDecisionStore(0), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return pgstore.NewDecisionStore(pool), chstore.NewAuditStore(conn), cleanup, nil
}

// forward copies outcomes into the engine's channel until cancelled.
func forward(ctx context.Context, src <-chan *domain.TradeOutcome, dst chan<- *domain.TradeOutcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-src:
			if !ok {
				return
			}
			select {
			case dst <- o:
			case <-ctx.Done():
				return
			}
		}
	}
}

// startHTTPServer serves health, metrics, operator commands, and history.
func startHTTPServer(addr string, eng *engine.Engine, dispatcher *operator.Dispatcher, store storage.DecisionStore, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Status())
	})

	command := func(kind operator.Kind) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			status, err := dispatcher.Submit(r.Context(), kind, r.URL.Query().Get("reason"))
			if err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			writeJSON(w, status)
		}
	}
	mux.HandleFunc("/pause", command(operator.KindPause))
	mux.HandleFunc("/resume", command(operator.KindResume))
	mux.HandleFunc("/override", command(operator.KindOverride))

	mux.HandleFunc("/decisions", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol query parameter is required", http.StatusBadRequest)
			return
		}
		n := 10
		if raw := r.URL.Query().Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "n must be a positive integer", http.StatusBadRequest)
				return
			}
			n = parsed
		}
		decisions, err := store.Last(r.Context(), symbol, n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, decisions)
	})

	mux.HandleFunc("/decisions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/decisions/")
		if id == "" {
			http.Error(w, "decision id is required", http.StatusBadRequest)
			return
		}
		d, err := store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "decision not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, d)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// splitSymbols parses the comma-separated symbol list.
func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// envOr returns the environment value or a default.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
