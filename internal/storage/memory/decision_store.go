package memory

import (
	"context"
	"sync"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// DefaultCapacity bounds the in-memory history when no capacity is given.
const DefaultCapacity = 1000

// DecisionStore is a bounded in-memory implementation of
// storage.DecisionStore. Entries beyond capacity evict oldest-first.
// Durability across restarts is explicitly not provided; use the postgres
// store when history must survive the process.
type DecisionStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string // append order, oldest first
	data     map[string]*domain.Decision
}

// NewDecisionStore creates a bounded in-memory decision store.
// capacity <= 0 falls back to DefaultCapacity.
func NewDecisionStore(capacity int) *DecisionStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &DecisionStore{
		capacity: capacity,
		data:     make(map[string]*domain.Decision),
	}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// Append adds a finalized decision. Returns ErrMissingGateResult if the
// decision was never gated, ErrDuplicateKey if the id already exists.
func (s *DecisionStore) Append(_ context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" || len(d.Opinions) == 0 {
		return storage.ErrInvalidInput
	}
	if d.GateResult == nil {
		return storage.ErrMissingGateResult
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[d.ID] = cloneDecision(d)
	s.order = append(s.order, d.ID)

	for len(s.order) > s.capacity {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.data, evicted)
	}
	return nil
}

// Last retrieves at most n decisions for a symbol, most recent first.
func (s *DecisionStore) Last(_ context.Context, symbol string, n int) ([]*domain.Decision, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decision
	for i := len(s.order) - 1; i >= 0 && len(result) < n; i-- {
		d := s.data[s.order[i]]
		if d.Symbol == symbol {
			result = append(result, cloneDecision(d))
		}
	}
	return result, nil
}

// Get retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) Get(_ context.Context, id string) (*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneDecision(d), nil
}

// Len returns the number of stored decisions.
func (s *DecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// cloneDecision deep-copies a decision so callers can never mutate history.
func cloneDecision(d *domain.Decision) *domain.Decision {
	copy := *d
	copy.Opinions = make([]*domain.Opinion, len(d.Opinions))
	for i, op := range d.Opinions {
		o := *op
		copy.Opinions[i] = &o
	}
	if d.GateResult != nil {
		gr := *d.GateResult
		copy.GateResult = &gr
	}
	if d.ExecutionResult != nil {
		er := *d.ExecutionResult
		copy.ExecutionResult = &er
	}
	return &copy
}
