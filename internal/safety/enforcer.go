// Package safety owns the process-wide safety state. The Enforcer is the
// sole writer: gate checks, trade outcomes, and operator commands all funnel
// through one serialized transition path, so a resume can never race a fresh
// trigger firing. Readers get consistent snapshots.
package safety

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/privacy"
)

// Config holds the trigger thresholds. Values mirror the runtime safety
// limits; invalid config is fatal at startup.
type Config struct {
	ConsecutiveLossLimit int           // pause at this many consecutive losing outcomes
	ErrorBurstLimit      int           // pause when more than this many errors fall in the window
	ErrorBurstWindow     time.Duration // trailing window for error events
	SentimentFloor       float64       // pause when last sentiment input drops below
	SlippageLimit        float64       // pause when observed slippage exceeds
	DailyLossCap         float64       // pause when cumulative realized loss for the day reaches
	OverrideDuration     time.Duration // how long a forced override stays in effect
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ConsecutiveLossLimit: 3,
		ErrorBurstLimit:      5,
		ErrorBurstWindow:     60 * time.Second,
		SentimentFloor:       -0.3,
		SlippageLimit:        0.01,
		DailyLossCap:         10,
		OverrideDuration:     15 * time.Minute,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.ConsecutiveLossLimit <= 0 {
		return errors.New("consecutive loss limit must be positive")
	}
	if c.ErrorBurstLimit <= 0 || c.ErrorBurstWindow <= 0 {
		return errors.New("error burst limit and window must be positive")
	}
	if c.SentimentFloor < -1 || c.SentimentFloor > 1 {
		return errors.New("sentiment floor must be within [-1, 1]")
	}
	if c.SlippageLimit <= 0 {
		return errors.New("slippage limit must be positive")
	}
	if c.DailyLossCap <= 0 {
		return errors.New("daily loss cap must be positive")
	}
	if c.OverrideDuration <= 0 {
		return errors.New("override duration must be positive")
	}
	return nil
}

// ErrStillTriggered is returned by Resume while a trigger condition holds.
var ErrStillTriggered = errors.New("resume refused: trigger condition still active")

// ErrNotPaused is returned by Override outside the PAUSED mode.
var ErrNotPaused = errors.New("override only applies to a paused state")

// Enforcer evaluates triggers and owns all safety state transitions.
type Enforcer struct {
	cfg     Config
	logger  *log.Logger
	scanner *privacy.Scanner
	now     func() time.Time

	mu                sync.RWMutex
	mode              domain.Mode
	pauseReason       domain.TriggerKind
	consecutiveLosses int
	errorEvents       []int64 // ms timestamps within the trailing window
	lastSentiment     float64
	lastSlippage      float64
	dailyLoss         float64 // cumulative realized loss today, positive number
	violations        []*domain.Violation
	overrideExpiresAt int64
}

// Options for creating an Enforcer.
type Options struct {
	Config  Config
	Logger  *log.Logger
	Scanner *privacy.Scanner

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates an Enforcer in ACTIVE mode with zeroed counters.
func New(opts Options) (*Enforcer, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("safety config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	scanner := opts.Scanner
	if scanner == nil {
		scanner = privacy.NewScanner()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Enforcer{
		cfg:     opts.Config,
		logger:  logger,
		scanner: scanner,
		now:     now,
		mode:    domain.ModeActive,
	}, nil
}

// Gate evaluates all triggers against the decision and current state, then
// decides whether the decision may proceed. Attaches the result to the
// decision and returns it. permit=false exactly when the resulting mode is
// PAUSED; an unexpired override permits and says so.
func (e *Enforcer) Gate(d *domain.Decision, sentiment float64) *domain.GateResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	e.lastSentiment = sentiment
	e.expireOverrideLocked(nowMs)

	if e.mode == domain.ModeActive {
		if matches := e.matchTriggersLocked(nowMs, d); len(matches) > 0 {
			e.pauseLocked(nowMs, matches, d.ID)
		}
	}

	result := &domain.GateResult{
		Mode:      e.mode,
		CheckedAt: nowMs,
	}
	switch e.mode {
	case domain.ModePaused:
		result.Permit = false
		result.Reason = string(e.pauseReason)
	case domain.ModeOverridden:
		result.Permit = true
		result.Reason = domain.GateReasonOverride
		e.logger.Printf("gate permitted decision %s under manual override (expires %d)", d.ID, e.overrideExpiresAt)
	default:
		result.Permit = true
		result.Reason = domain.GateReasonActive
	}

	d.GateResult = result
	return result
}

// ApplyOutcome consumes one trade outcome, updates the rolling counters, and
// re-evaluates triggers. Each outcome is consumed exactly once; ordering is
// enforced upstream by the risk gate.
func (e *Enforcer) ApplyOutcome(o *domain.TradeOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	e.expireOverrideLocked(nowMs)

	if o.RealizedPnL < 0 {
		e.consecutiveLosses++
		e.dailyLoss += -o.RealizedPnL
	} else {
		// Any non-negative outcome breaks the streak.
		e.consecutiveLosses = 0
	}
	e.lastSlippage = o.SlippageFraction

	if e.mode == domain.ModeActive {
		if matches := e.matchTriggersLocked(nowMs, nil); len(matches) > 0 {
			e.pauseLocked(nowMs, matches, o.DecisionID)
		}
	}
}

// RecordErrorEvent feeds one externally-reported error into the burst window
// and re-evaluates triggers.
func (e *Enforcer) RecordErrorEvent(ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	e.expireOverrideLocked(nowMs)
	e.errorEvents = append(e.errorEvents, ts.UnixMilli())
	e.pruneErrorsLocked(nowMs)

	if e.mode == domain.ModeActive {
		if matches := e.matchTriggersLocked(nowMs, nil); len(matches) > 0 {
			e.pauseLocked(nowMs, matches, "")
		}
	}
}

// Pause is the operator's manual pause. Records an audit violation.
func (e *Enforcer) Pause(detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	e.expireOverrideLocked(nowMs)
	if e.mode == domain.ModePaused {
		return
	}
	e.mode = domain.ModePaused
	e.pauseReason = domain.TriggerManualPause
	e.overrideExpiresAt = 0
	e.appendViolationLocked(&domain.Violation{
		Kind:      domain.TriggerManualPause,
		Detail:    detail,
		Timestamp: nowMs,
	})
	e.logger.Printf("safety paused by operator: %s", detail)
}

// Resume re-evaluates all triggers and returns to ACTIVE only when none
// currently match. A failed resume leaves the state unchanged and reports
// the still-active triggers.
func (e *Enforcer) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	e.expireOverrideLocked(nowMs)
	if e.mode == domain.ModeActive {
		return nil
	}

	if matches := e.matchTriggersLocked(nowMs, nil); len(matches) > 0 {
		kinds := make([]string, len(matches))
		for i, m := range matches {
			kinds[i] = string(m.kind)
		}
		return fmt.Errorf("%w: %s", ErrStillTriggered, strings.Join(kinds, ", "))
	}

	e.mode = domain.ModeActive
	e.pauseReason = ""
	e.overrideExpiresAt = 0
	e.logger.Printf("safety resumed: no triggers active")
	return nil
}

// Override forces PAUSED → OVERRIDDEN without re-evaluating triggers. Always
// records an irreversible manual_override audit violation.
func (e *Enforcer) Override(detail string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	e.expireOverrideLocked(nowMs)
	if e.mode != domain.ModePaused {
		return ErrNotPaused
	}

	e.mode = domain.ModeOverridden
	e.overrideExpiresAt = nowMs + e.cfg.OverrideDuration.Milliseconds()
	e.appendViolationLocked(&domain.Violation{
		Kind:      domain.TriggerManualOverride,
		Detail:    detail,
		Timestamp: nowMs,
	})
	e.logger.Printf("safety overridden by operator until %d: %s", e.overrideExpiresAt, detail)
	return nil
}

// ResetDaily zeroes the daily loss counter at the trading-day boundary.
func (e *Enforcer) ResetDaily() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dailyLoss = 0
	e.logger.Printf("daily loss counter reset")
}

// Status returns a consistent snapshot for status reporting. Safe to call
// concurrently with transitions.
func (e *Enforcer) Status() domain.SafetyStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nowMs := e.now().UnixMilli()
	errors60s := 0
	cutoff := nowMs - e.cfg.ErrorBurstWindow.Milliseconds()
	for _, ts := range e.errorEvents {
		if ts > cutoff {
			errors60s++
		}
	}

	return domain.SafetyStatus{
		Mode:              e.mode,
		PauseReason:       string(e.pauseReason),
		ConsecutiveLosses: e.consecutiveLosses,
		ErrorsLast60s:     errors60s,
		DailyRealizedLoss: e.dailyLoss,
		LastSentiment:     e.lastSentiment,
		ViolationsCount:   len(e.violations),
		OverrideExpiresAt: e.overrideExpiresAt,
	}
}

// DailyLoss returns the cumulative realized loss for the current day.
func (e *Enforcer) DailyLoss() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dailyLoss
}

// DailyLossCap returns the configured cap, for headroom checks.
func (e *Enforcer) DailyLossCap() float64 {
	return e.cfg.DailyLossCap
}

// Violations returns a copy of the full violation history.
func (e *Enforcer) Violations() []*domain.Violation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.Violation, len(e.violations))
	for i, v := range e.violations {
		clone := *v
		out[i] = &clone
	}
	return out
}

// pauseLocked performs the ACTIVE → PAUSED transition. Every simultaneously
// matched trigger gets its own violation; pause_reason records the first.
func (e *Enforcer) pauseLocked(nowMs int64, matches []triggerMatch, decisionID string) {
	e.mode = domain.ModePaused
	e.pauseReason = matches[0].kind
	for _, m := range matches {
		e.appendViolationLocked(&domain.Violation{
			Kind:       m.kind,
			Detail:     m.detail,
			Timestamp:  nowMs,
			DecisionID: decisionID,
		})
	}
	e.logger.Printf("safety paused: %s (%d trigger(s) matched)", e.pauseReason, len(matches))
}

// expireOverrideLocked returns the state machine to normal trigger
// evaluation once an override window elapses: pause when a trigger still
// matches, otherwise active.
func (e *Enforcer) expireOverrideLocked(nowMs int64) {
	if e.mode != domain.ModeOverridden || nowMs < e.overrideExpiresAt {
		return
	}
	e.overrideExpiresAt = 0
	if matches := e.matchTriggersLocked(nowMs, nil); len(matches) > 0 {
		e.pauseLocked(nowMs, matches, "")
		return
	}
	e.mode = domain.ModeActive
	e.pauseReason = ""
	e.logger.Printf("override expired, safety active")
}

func (e *Enforcer) appendViolationLocked(v *domain.Violation) {
	e.violations = append(e.violations, v)
}
