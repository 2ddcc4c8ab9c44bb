package domain

// TradeOutcome is emitted once per executed order by the execution
// collaborator. Consumed exactly once by the safety enforcer, in acceptance
// order (Sequence is assigned by the risk gate when the order is accepted).
type TradeOutcome struct {
	DecisionID       string
	Sequence         uint64
	RealizedPnL      float64 // currency units, negative on loss
	SlippageFraction float64 // executed-vs-quoted price distance, e.g. 0.004
	Timestamp        int64   // Unix timestamp in milliseconds
}
