package orchestrator

import "tradegate/internal/domain"

// Aggregate combines opinions via confidence-weighted vote.
//
// Any synthesis veto forces (HOLD, 0) regardless of the vote. Otherwise each
// stance accumulates the confidence of the opinions holding it; the stance
// with the highest sum wins, ties resolve to HOLD, and a winning sum below
// minSignal resolves to HOLD as well. The returned confidence is the winning
// stance's share of the total confidence mass.
//
// Deterministic and side-effect-free: the same multiset of opinions always
// yields the same result.
func Aggregate(opinions []*domain.Opinion, minSignal float64) (domain.Stance, float64) {
	for _, op := range opinions {
		if op.Veto {
			return domain.StanceHold, 0
		}
	}

	sums := map[domain.Stance]float64{}
	var total float64
	for _, op := range opinions {
		sums[op.Stance] += op.Confidence
		total += op.Confidence
	}
	if total == 0 {
		return domain.StanceHold, 0
	}

	winner := domain.StanceHold
	switch {
	case sums[domain.StanceBuy] > sums[domain.StanceSell] && sums[domain.StanceBuy] > sums[domain.StanceHold]:
		winner = domain.StanceBuy
	case sums[domain.StanceSell] > sums[domain.StanceBuy] && sums[domain.StanceSell] > sums[domain.StanceHold]:
		winner = domain.StanceSell
	}

	// Below the minimum signal the directional vote is noise.
	if winner != domain.StanceHold && sums[winner] < minSignal {
		winner = domain.StanceHold
	}

	return winner, sums[winner] / total
}
