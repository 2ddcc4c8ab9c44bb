// Package market supplies market-context snapshots to the engine. The real
// platform feeds these from its ingestion layer; this package provides the
// boundary interface implementation used for paper runs.
package market

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradegate/internal/domain"
)

// HistoryPoints is how many price points each snapshot carries.
const HistoryPoints = 20

// RandomWalkSource simulates per-symbol price series as a bounded random
// walk with drifting sentiment. Deterministic for a fixed seed.
type RandomWalkSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	states map[string]*walkState
}

type walkState struct {
	price     float64
	sentiment float64
	history   []domain.PricePoint
}

// NewRandomWalkSource creates a source seeded for reproducibility.
func NewRandomWalkSource(seed int64) *RandomWalkSource {
	return &RandomWalkSource{
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
		states: make(map[string]*walkState),
	}
}

// Snapshot advances the symbol's walk one step and returns the new context.
func (s *RandomWalkSource) Snapshot(ctx context.Context, symbol string) (*domain.MarketContext, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[symbol]
	if !ok {
		st = &walkState{price: 100}
		s.states[symbol] = st
	}

	// Price step within ±0.5%, sentiment drifts and decays toward zero.
	step := (s.rng.Float64() - 0.5) * 0.01
	st.price *= 1 + step
	st.sentiment = clampSentiment(st.sentiment*0.9 + (s.rng.Float64()-0.5)*0.2)

	nowMs := s.now().UnixMilli()
	st.history = append(st.history, domain.PricePoint{TimestampMs: nowMs, Price: st.price})
	if len(st.history) > HistoryPoints {
		st.history = st.history[len(st.history)-HistoryPoints:]
	}

	history := make([]domain.PricePoint, len(st.history))
	copy(history, st.history)

	return &domain.MarketContext{
		Symbol:    symbol,
		Price:     st.price,
		History:   history,
		Sentiment: st.sentiment,
		AsOf:      nowMs,
	}, nil
}

func clampSentiment(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
