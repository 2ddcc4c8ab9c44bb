package agent

import (
	"context"
	"fmt"
	"time"

	"tradegate/internal/domain"
)

// Bull argues the strongest available case for entering long. Runs in the
// debate stage, consuming the research-stage output. Exactly one debate
// round is performed; there is no back-and-forth.
type Bull struct {
	id string
}

// NewBull creates a bull debate agent.
func NewBull(id string) *Bull { return &Bull{id: id} }

func (b *Bull) ID() string             { return b.id }
func (b *Bull) Role() domain.AgentRole { return domain.RoleBull }

func (b *Bull) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	support, opposition := weighStances(in.Prior, domain.StanceBuy, domain.StanceSell)

	// The bull concedes when research is firmly against it, otherwise it
	// presses the long case with confidence proportional to its margin.
	stance := domain.StanceBuy
	confidence := clamp01(0.5 + (support-opposition)/2)
	if opposition > support+0.5 {
		stance = domain.StanceHold
		confidence = 0.2
	}

	return &domain.Opinion{
		AgentID:    b.id,
		Role:       domain.RoleBull,
		Stance:     stance,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("long case: supporting weight %.2f vs opposing %.2f across %d research opinions", support, opposition, len(in.Prior)),
		ProducedAt: time.Now().UnixMilli(),
	}, nil
}

// Bear argues the strongest available case against entering long.
// Mirror image of Bull.
type Bear struct {
	id string
}

// NewBear creates a bear debate agent.
func NewBear(id string) *Bear { return &Bear{id: id} }

func (b *Bear) ID() string             { return b.id }
func (b *Bear) Role() domain.AgentRole { return domain.RoleBear }

func (b *Bear) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	support, opposition := weighStances(in.Prior, domain.StanceSell, domain.StanceBuy)

	stance := domain.StanceSell
	confidence := clamp01(0.5 + (support-opposition)/2)
	if opposition > support+0.5 {
		stance = domain.StanceHold
		confidence = 0.2
	}

	return &domain.Opinion{
		AgentID:    b.id,
		Role:       domain.RoleBear,
		Stance:     stance,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("short case: supporting weight %.2f vs opposing %.2f across %d research opinions", support, opposition, len(in.Prior)),
		ProducedAt: time.Now().UnixMilli(),
	}, nil
}

// weighStances sums prior confidence for and against a position. Degraded
// opinions carry no weight.
func weighStances(prior []*domain.Opinion, supporting, opposing domain.Stance) (float64, float64) {
	var support, opposition float64
	for _, op := range prior {
		if op.Degraded {
			continue
		}
		switch op.Stance {
		case supporting:
			support += op.Confidence
		case opposing:
			opposition += op.Confidence
		}
	}
	return support, opposition
}
