package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradegate/internal/domain"
)

// ErrInsufficientData is returned when a snapshot has too little history for
// the agent to form an opinion.
var ErrInsufficientData = errors.New("insufficient market history")

// Researcher forms a directional view from price momentum over the snapshot
// window. Runs in the research stage with no dependency on other agents.
type Researcher struct {
	id string

	// MomentumThreshold is the minimum absolute fractional move that counts
	// as a signal; below it the researcher holds.
	MomentumThreshold float64
}

// NewResearcher creates a momentum researcher.
func NewResearcher(id string, momentumThreshold float64) *Researcher {
	if momentumThreshold <= 0 {
		momentumThreshold = 0.005
	}
	return &Researcher{id: id, MomentumThreshold: momentumThreshold}
}

func (r *Researcher) ID() string             { return r.id }
func (r *Researcher) Role() domain.AgentRole { return domain.RoleResearcher }

// ProduceOpinion maps momentum to stance: above threshold buys, below the
// negative threshold sells, otherwise holds. Confidence scales with the
// size of the move, saturating at 5x threshold.
func (r *Researcher) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	if in.Market == nil || len(in.Market.History) < 2 {
		return nil, ErrInsufficientData
	}

	momentum := in.Market.Momentum()
	stance := domain.StanceHold
	switch {
	case momentum > r.MomentumThreshold:
		stance = domain.StanceBuy
	case momentum < -r.MomentumThreshold:
		stance = domain.StanceSell
	}

	confidence := clamp01(abs(momentum) / (r.MomentumThreshold * 5))
	if stance == domain.StanceHold {
		confidence = clamp01(1 - abs(momentum)/r.MomentumThreshold)
	}

	return &domain.Opinion{
		AgentID:    r.id,
		Role:       domain.RoleResearcher,
		Stance:     stance,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("momentum %.4f over %d points, threshold %.4f", momentum, len(in.Market.History), r.MomentumThreshold),
		ProducedAt: time.Now().UnixMilli(),
	}, nil
}

// Optimizer forms an allocation view by blending sentiment with momentum.
// Runs in the research stage.
type Optimizer struct {
	id string

	// SentimentWeight is the share of the blended signal taken from
	// sentiment; the remainder comes from momentum.
	SentimentWeight float64
}

// NewOptimizer creates a sentiment/momentum blend optimizer.
func NewOptimizer(id string, sentimentWeight float64) *Optimizer {
	if sentimentWeight <= 0 || sentimentWeight >= 1 {
		sentimentWeight = 0.4
	}
	return &Optimizer{id: id, SentimentWeight: sentimentWeight}
}

func (o *Optimizer) ID() string             { return o.id }
func (o *Optimizer) Role() domain.AgentRole { return domain.RoleOptimizer }

func (o *Optimizer) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	if in.Market == nil {
		return nil, ErrInsufficientData
	}

	// Momentum is a fractional move; scale it into [-1, 1] territory so the
	// blend with sentiment is balanced.
	momentumSignal := clampSigned(in.Market.Momentum() * 20)
	blended := o.SentimentWeight*in.Market.Sentiment + (1-o.SentimentWeight)*momentumSignal

	stance := domain.StanceHold
	switch {
	case blended > 0.15:
		stance = domain.StanceBuy
	case blended < -0.15:
		stance = domain.StanceSell
	}

	return &domain.Opinion{
		AgentID:    o.id,
		Role:       domain.RoleOptimizer,
		Stance:     stance,
		Confidence: clamp01(abs(blended)),
		Rationale:  fmt.Sprintf("blended signal %.4f (sentiment %.2f, momentum signal %.4f)", blended, in.Market.Sentiment, momentumSignal),
		ProducedAt: time.Now().UnixMilli(),
	}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
