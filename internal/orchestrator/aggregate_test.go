package orchestrator

import (
	"testing"

	"tradegate/internal/domain"
)

func op(stance domain.Stance, confidence float64) *domain.Opinion {
	return &domain.Opinion{Stance: stance, Confidence: confidence}
}

func TestAggregate_WeightedVote(t *testing.T) {
	tests := []struct {
		name       string
		opinions   []*domain.Opinion
		minSignal  float64
		wantStance domain.Stance
		wantConf   float64
	}{
		{
			name:       "buy wins on weight",
			opinions:   []*domain.Opinion{op(domain.StanceBuy, 0.8), op(domain.StanceBuy, 0.6), op(domain.StanceSell, 0.5)},
			minSignal:  0.3,
			wantStance: domain.StanceBuy,
			wantConf:   1.4 / 1.9,
		},
		{
			name:       "sell wins on weight",
			opinions:   []*domain.Opinion{op(domain.StanceSell, 0.9), op(domain.StanceBuy, 0.3)},
			minSignal:  0.3,
			wantStance: domain.StanceSell,
			wantConf:   0.9 / 1.2,
		},
		{
			name:       "buy-sell tie resolves to hold",
			opinions:   []*domain.Opinion{op(domain.StanceBuy, 0.5), op(domain.StanceSell, 0.5)},
			minSignal:  0.3,
			wantStance: domain.StanceHold,
			wantConf:   0,
		},
		{
			name:       "below min signal resolves to hold",
			opinions:   []*domain.Opinion{op(domain.StanceBuy, 0.2), op(domain.StanceHold, 0.1)},
			minSignal:  0.3,
			wantStance: domain.StanceHold,
			wantConf:   0.1 / 0.3,
		},
		{
			name:       "all zero confidence holds",
			opinions:   []*domain.Opinion{op(domain.StanceBuy, 0), op(domain.StanceSell, 0)},
			minSignal:  0.3,
			wantStance: domain.StanceHold,
			wantConf:   0,
		},
		{
			name:       "hold majority holds",
			opinions:   []*domain.Opinion{op(domain.StanceHold, 0.9), op(domain.StanceBuy, 0.4)},
			minSignal:  0.3,
			wantStance: domain.StanceHold,
			wantConf:   0.9 / 1.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stance, conf := Aggregate(tt.opinions, tt.minSignal)
			if stance != tt.wantStance {
				t.Errorf("stance = %s, want %s", stance, tt.wantStance)
			}
			if diff := conf - tt.wantConf; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("confidence = %f, want %f", conf, tt.wantConf)
			}
		})
	}
}

func TestAggregate_VetoAlwaysWins(t *testing.T) {
	opinions := []*domain.Opinion{
		op(domain.StanceBuy, 1.0),
		op(domain.StanceBuy, 1.0),
		{Stance: domain.StanceHold, Confidence: 0, Veto: true},
	}

	stance, conf := Aggregate(opinions, 0.3)
	if stance != domain.StanceHold {
		t.Errorf("stance = %s, want HOLD on veto", stance)
	}
	if conf != 0 {
		t.Errorf("confidence = %f, want 0 on veto", conf)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	opinions := []*domain.Opinion{
		op(domain.StanceBuy, 0.7),
		op(domain.StanceSell, 0.4),
		op(domain.StanceHold, 0.2),
	}

	firstStance, firstConf := Aggregate(opinions, 0.3)
	for i := 0; i < 100; i++ {
		stance, conf := Aggregate(opinions, 0.3)
		if stance != firstStance || conf != firstConf {
			t.Fatalf("iteration %d: got (%s, %f), want (%s, %f)", i, stance, conf, firstStance, firstConf)
		}
	}
}
