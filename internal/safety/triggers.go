package safety

import (
	"fmt"

	"tradegate/internal/domain"
)

// triggerMatch is one trigger condition found true during an evaluation.
type triggerMatch struct {
	kind   domain.TriggerKind
	detail string
}

// matchTriggersLocked evaluates every trigger against current state and
// returns the matches in the fixed table order. Conditions depend only on
// state, so repeated evaluation without state change yields the same result.
// d is the decision under evaluation, nil when triggered by an outcome or
// error event.
func (e *Enforcer) matchTriggersLocked(nowMs int64, d *domain.Decision) []triggerMatch {
	var matches []triggerMatch

	if e.consecutiveLosses >= e.cfg.ConsecutiveLossLimit {
		matches = append(matches, triggerMatch{
			kind:   domain.TriggerConsecutiveLosses,
			detail: fmt.Sprintf("%d consecutive losing outcomes (limit %d)", e.consecutiveLosses, e.cfg.ConsecutiveLossLimit),
		})
	}

	e.pruneErrorsLocked(nowMs)
	if len(e.errorEvents) > e.cfg.ErrorBurstLimit {
		matches = append(matches, triggerMatch{
			kind:   domain.TriggerAPIErrorBurst,
			detail: fmt.Sprintf("%d errors within %s (limit %d)", len(e.errorEvents), e.cfg.ErrorBurstWindow, e.cfg.ErrorBurstLimit),
		})
	}

	if e.lastSentiment < e.cfg.SentimentFloor {
		matches = append(matches, triggerMatch{
			kind:   domain.TriggerSentimentDrop,
			detail: fmt.Sprintf("sentiment %.3f below floor %.3f", e.lastSentiment, e.cfg.SentimentFloor),
		})
	}

	if e.lastSlippage > e.cfg.SlippageLimit {
		matches = append(matches, triggerMatch{
			kind:   domain.TriggerSlippageAnomaly,
			detail: fmt.Sprintf("slippage %.4f above limit %.4f", e.lastSlippage, e.cfg.SlippageLimit),
		})
	}

	if e.dailyLoss >= e.cfg.DailyLossCap {
		matches = append(matches, triggerMatch{
			kind:   domain.TriggerDailyLossLimit,
			detail: fmt.Sprintf("daily realized loss %.2f reached cap %.2f", e.dailyLoss, e.cfg.DailyLossCap),
		})
	}

	if d != nil {
		rationales := make([]string, 0, len(d.Opinions))
		for _, op := range d.Opinions {
			rationales = append(rationales, op.Rationale)
		}
		if pattern, found := e.scanner.ScanAll(rationales); found {
			matches = append(matches, triggerMatch{
				kind:   domain.TriggerPrivacyBreach,
				detail: fmt.Sprintf("rationale matched %s pattern", pattern),
			})
		}
	}

	return matches
}

// pruneErrorsLocked drops error events older than the trailing window.
func (e *Enforcer) pruneErrorsLocked(nowMs int64) {
	cutoff := nowMs - e.cfg.ErrorBurstWindow.Milliseconds()
	kept := e.errorEvents[:0]
	for _, ts := range e.errorEvents {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	e.errorEvents = kept
}
