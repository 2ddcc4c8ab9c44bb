package agent

import (
	"context"
	"fmt"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/privacy"
)

// Technical validates the market snapshot itself. Runs in the synthesis
// stage and vetoes when the data a decision would rest on is unusable.
type Technical struct {
	id string

	// MaxSnapshotAge bounds how stale the snapshot may be before the agent
	// refuses to validate it. Zero disables the check.
	MaxSnapshotAge time.Duration

	// MinHistoryPoints is the minimum history length considered meaningful.
	MinHistoryPoints int
}

// NewTechnical creates a technical-validation agent.
func NewTechnical(id string, maxSnapshotAge time.Duration, minHistoryPoints int) *Technical {
	if minHistoryPoints <= 0 {
		minHistoryPoints = 3
	}
	return &Technical{id: id, MaxSnapshotAge: maxSnapshotAge, MinHistoryPoints: minHistoryPoints}
}

func (a *Technical) ID() string             { return a.id }
func (a *Technical) Role() domain.AgentRole { return domain.RoleTechnical }

func (a *Technical) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	now := time.Now().UnixMilli()

	veto := false
	detail := "snapshot validated"
	switch {
	case in.Market == nil || in.Market.Price <= 0:
		veto = true
		detail = "snapshot missing or non-positive price"
	case len(in.Market.History) < a.MinHistoryPoints:
		veto = true
		detail = fmt.Sprintf("history too short: %d points, need %d", len(in.Market.History), a.MinHistoryPoints)
	case a.MaxSnapshotAge > 0 && now-in.Market.AsOf > a.MaxSnapshotAge.Milliseconds():
		veto = true
		detail = fmt.Sprintf("snapshot stale: %dms old", now-in.Market.AsOf)
	}

	op := &domain.Opinion{
		AgentID:    a.id,
		Role:       domain.RoleTechnical,
		Stance:     domain.StanceHold,
		Confidence: 0.5,
		Rationale:  detail,
		ProducedAt: now,
		Veto:       veto,
	}
	if veto {
		op.Confidence = 0
	}
	return op, nil
}

// Risk vetoes decisions whose market conditions carry unacceptable exposure.
// A risk veto always wins over the debate outcome.
type Risk struct {
	id string

	// MaxVolatility is the largest tolerated fractional swing within the
	// snapshot window.
	MaxVolatility float64

	// SentimentFloor vetoes when aggregated sentiment sits below it.
	SentimentFloor float64
}

// NewRisk creates a risk synthesis agent.
func NewRisk(id string, maxVolatility, sentimentFloor float64) *Risk {
	if maxVolatility <= 0 {
		maxVolatility = 0.15
	}
	if sentimentFloor == 0 {
		sentimentFloor = -0.5
	}
	return &Risk{id: id, MaxVolatility: maxVolatility, SentimentFloor: sentimentFloor}
}

func (a *Risk) ID() string             { return a.id }
func (a *Risk) Role() domain.AgentRole { return domain.RoleRisk }

func (a *Risk) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	now := time.Now().UnixMilli()

	veto := false
	detail := "exposure within limits"
	if in.Market != nil {
		if vol := windowVolatility(in.Market.History); vol > a.MaxVolatility {
			veto = true
			detail = fmt.Sprintf("window volatility %.4f exceeds limit %.4f", vol, a.MaxVolatility)
		} else if in.Market.Sentiment < a.SentimentFloor {
			veto = true
			detail = fmt.Sprintf("sentiment %.2f below floor %.2f", in.Market.Sentiment, a.SentimentFloor)
		}
	}

	op := &domain.Opinion{
		AgentID:    a.id,
		Role:       domain.RoleRisk,
		Stance:     domain.StanceHold,
		Confidence: 0.5,
		Rationale:  detail,
		ProducedAt: now,
		Veto:       veto,
	}
	if veto {
		op.Confidence = 0
	}
	return op, nil
}

// Privacy vetoes when any prior rationale contains disallowed personal data.
// Shares its scanner with the privacy_breach safety trigger so the two can
// never disagree on what counts as a breach.
type Privacy struct {
	id      string
	scanner *privacy.Scanner
}

// NewPrivacy creates a privacy synthesis agent.
func NewPrivacy(id string, scanner *privacy.Scanner) *Privacy {
	if scanner == nil {
		scanner = privacy.NewScanner()
	}
	return &Privacy{id: id, scanner: scanner}
}

func (a *Privacy) ID() string             { return a.id }
func (a *Privacy) Role() domain.AgentRole { return domain.RolePrivacy }

func (a *Privacy) ProduceOpinion(_ context.Context, in *Context) (*domain.Opinion, error) {
	now := time.Now().UnixMilli()

	texts := make([]string, 0, len(in.Prior))
	for _, op := range in.Prior {
		texts = append(texts, op.Rationale)
	}

	op := &domain.Opinion{
		AgentID:    a.id,
		Role:       domain.RolePrivacy,
		Stance:     domain.StanceHold,
		Confidence: 0.5,
		Rationale:  "no disallowed personal data in rationales",
		ProducedAt: now,
	}
	if pattern, found := a.scanner.ScanAll(texts); found {
		op.Veto = true
		op.Confidence = 0
		op.Rationale = fmt.Sprintf("disallowed personal-data pattern %q in a rationale", pattern)
	}
	return op, nil
}

// windowVolatility returns (max-min)/min over the history window,
// 0 when the window is unusable.
func windowVolatility(history []domain.PricePoint) float64 {
	if len(history) < 2 {
		return 0
	}
	min, max := history[0].Price, history[0].Price
	for _, p := range history[1:] {
		if p.Price < min {
			min = p.Price
		}
		if p.Price > max {
			max = p.Price
		}
	}
	if min <= 0 {
		return 0
	}
	return (max - min) / min
}
