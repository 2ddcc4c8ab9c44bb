package domain

// Mode is the safety state machine's current mode.
type Mode string

const (
	ModeActive     Mode = "ACTIVE"
	ModePaused     Mode = "PAUSED"
	ModeOverridden Mode = "OVERRIDDEN"
)

// TriggerKind names a condition that forces a pause when true.
type TriggerKind string

const (
	TriggerConsecutiveLosses TriggerKind = "consecutive_losses"
	TriggerAPIErrorBurst     TriggerKind = "api_error_burst"
	TriggerSentimentDrop     TriggerKind = "sentiment_drop"
	TriggerSlippageAnomaly   TriggerKind = "slippage_anomaly"
	TriggerDailyLossLimit    TriggerKind = "daily_loss_limit"
	TriggerPrivacyBreach     TriggerKind = "privacy_breach"

	// TriggerManualOverride and TriggerManualPause are not pause triggers;
	// they are the audit kinds recorded for operator commands.
	TriggerManualOverride TriggerKind = "manual_override"
	TriggerManualPause    TriggerKind = "manual_pause"
)

// Violation is an immutable audit record of a trigger firing or an override.
// Appended to safety state, never removed.
type Violation struct {
	Kind       TriggerKind
	Detail     string
	Timestamp  int64  // Unix timestamp in milliseconds
	DecisionID string // optional reference to the decision under evaluation
}

// SafetyStatus is a consistent read-only snapshot of safety state.
type SafetyStatus struct {
	Mode              Mode    `json:"mode"`
	PauseReason       string  `json:"pause_reason,omitempty"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	ErrorsLast60s     int     `json:"errors_last_60s"`
	DailyRealizedLoss float64 `json:"daily_realized_loss"`
	LastSentiment     float64 `json:"last_sentiment"`
	ViolationsCount   int     `json:"violations_count"`
	OverrideExpiresAt int64   `json:"override_expires_at,omitempty"`
}
