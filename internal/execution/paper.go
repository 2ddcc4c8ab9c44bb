package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tradegate/internal/domain"
)

// PaperConfig configures simulated fills.
type PaperConfig struct {
	// Slippage is the fixed slippage fraction stamped on every fill.
	Slippage float64
	// FillDelay postpones the outcome, simulating venue latency. Zero
	// delivers immediately.
	FillDelay time.Duration
	// OutcomeBuffer bounds the outcome channel.
	OutcomeBuffer int
}

// DefaultPaperConfig returns defaults suitable for dry runs.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		Slippage:      0.001,
		OutcomeBuffer: 256,
	}
}

// ErrOutcomeBufferFull is returned when fills outpace the consumer.
var ErrOutcomeBufferFull = errors.New("paper outcome buffer full")

// PaperExecutor simulates execution: every order fills at the quoted price
// with the configured slippage and zero realized pnl. Outcomes are delivered
// on a channel so consumption never re-enters the caller's locks.
type PaperExecutor struct {
	cfg      PaperConfig
	logger   *log.Logger
	now      func() time.Time
	outcomes chan *domain.TradeOutcome
}

var _ Executor = (*PaperExecutor)(nil)

// NewPaperExecutor creates a paper executor.
func NewPaperExecutor(cfg PaperConfig, logger *log.Logger) *PaperExecutor {
	if cfg.OutcomeBuffer <= 0 {
		cfg.OutcomeBuffer = DefaultPaperConfig().OutcomeBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PaperExecutor{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		outcomes: make(chan *domain.TradeOutcome, cfg.OutcomeBuffer),
	}
}

// Outcomes delivers one TradeOutcome per executed order.
func (p *PaperExecutor) Outcomes() <-chan *domain.TradeOutcome {
	return p.outcomes
}

// Execute simulates the order and queues its fill.
func (p *PaperExecutor) Execute(ctx context.Context, order *Order) error {
	if order == nil || order.Size <= 0 || order.Side == domain.StanceHold {
		return fmt.Errorf("%w: side=%v size=%v", ErrInvalidOrder, orderSide(order), orderSize(order))
	}

	outcome := &domain.TradeOutcome{
		DecisionID:       order.DecisionID,
		Sequence:         order.Sequence,
		RealizedPnL:      0,
		SlippageFraction: p.cfg.Slippage,
		Timestamp:        p.now().UnixMilli(),
	}

	if p.cfg.FillDelay > 0 {
		go func() {
			select {
			case <-time.After(p.cfg.FillDelay):
			case <-ctx.Done():
				return
			}
			select {
			case p.outcomes <- outcome:
			default:
				p.logger.Printf("dropping delayed paper fill for decision %s: %v", order.DecisionID, ErrOutcomeBufferFull)
			}
		}()
		return nil
	}

	select {
	case p.outcomes <- outcome:
		return nil
	default:
		return fmt.Errorf("%w: decision %s", ErrOutcomeBufferFull, order.DecisionID)
	}
}

func orderSide(o *Order) domain.Stance {
	if o == nil {
		return ""
	}
	return o.Side
}

func orderSize(o *Order) float64 {
	if o == nil {
		return 0
	}
	return o.Size
}
