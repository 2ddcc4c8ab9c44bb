package execution

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"tradegate/internal/domain"
)

func testOrder(id string, seq uint64) *Order {
	return &Order{
		DecisionID: id,
		Symbol:     "BTC/USD",
		Side:       domain.StanceBuy,
		Size:       1,
		StopLoss:   0.02,
		Sequence:   seq,
	}
}

func TestPaperExecutor_EmitsOneOutcomePerOrder(t *testing.T) {
	p := NewPaperExecutor(DefaultPaperConfig(), log.New(io.Discard, "", 0))

	if err := p.Execute(context.Background(), testOrder("d1", 1)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := p.Execute(context.Background(), testOrder("d2", 2)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	first := <-p.Outcomes()
	second := <-p.Outcomes()
	if first.DecisionID != "d1" || first.Sequence != 1 {
		t.Errorf("First outcome = {%s %d}, want {d1 1}", first.DecisionID, first.Sequence)
	}
	if second.DecisionID != "d2" || second.Sequence != 2 {
		t.Errorf("Second outcome = {%s %d}, want {d2 2}", second.DecisionID, second.Sequence)
	}
	if first.SlippageFraction != DefaultPaperConfig().Slippage {
		t.Errorf("Slippage = %f, want configured %f", first.SlippageFraction, DefaultPaperConfig().Slippage)
	}
}

func TestPaperExecutor_RejectsInvalidOrders(t *testing.T) {
	p := NewPaperExecutor(DefaultPaperConfig(), log.New(io.Discard, "", 0))

	bad := testOrder("d1", 1)
	bad.Side = domain.StanceHold
	if err := p.Execute(context.Background(), bad); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("Hold order error = %v, want ErrInvalidOrder", err)
	}

	bad = testOrder("d2", 2)
	bad.Size = 0
	if err := p.Execute(context.Background(), bad); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("Zero-size order error = %v, want ErrInvalidOrder", err)
	}
}

func TestPaperExecutor_BufferIsBounded(t *testing.T) {
	cfg := DefaultPaperConfig()
	cfg.OutcomeBuffer = 1
	p := NewPaperExecutor(cfg, log.New(io.Discard, "", 0))

	if err := p.Execute(context.Background(), testOrder("d1", 1)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := p.Execute(context.Background(), testOrder("d2", 2)); !errors.Is(err, ErrOutcomeBufferFull) {
		t.Errorf("Overflow error = %v, want ErrOutcomeBufferFull", err)
	}
}
