package idhash

import "testing"

func TestComputeDecisionID_Deterministic(t *testing.T) {
	a := ComputeDecisionID("BTC/USD", 1700000000000, 1)
	b := ComputeDecisionID("BTC/USD", 1700000000000, 1)
	if a != b {
		t.Errorf("Same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
}

func TestComputeDecisionID_DistinctInputs(t *testing.T) {
	base := ComputeDecisionID("BTC/USD", 1700000000000, 1)

	if ComputeDecisionID("ETH/USD", 1700000000000, 1) == base {
		t.Error("Different symbol produced same id")
	}
	if ComputeDecisionID("BTC/USD", 1700000000001, 1) == base {
		t.Error("Different timestamp produced same id")
	}
	if ComputeDecisionID("BTC/USD", 1700000000000, 2) == base {
		t.Error("Different sequence produced same id")
	}
}
