package domain

// PricePoint is one point of recent price history inside a market snapshot.
type PricePoint struct {
	TimestampMs int64
	Price       float64
	Volume      float64
}

// MarketContext is the per-evaluation market snapshot supplied by the
// market-data collaborator. The core never fetches data itself.
type MarketContext struct {
	Symbol    string
	Price     float64
	History   []PricePoint // ordered by timestamp ASC
	Sentiment float64      // aggregated sentiment in [-1, 1]
	AsOf      int64        // snapshot timestamp (ms)
}

// Momentum returns the fractional price change over the snapshot's history
// window, 0 when there is not enough history.
func (m *MarketContext) Momentum() float64 {
	if len(m.History) < 2 {
		return 0
	}
	first := m.History[0].Price
	last := m.History[len(m.History)-1].Price
	if first == 0 {
		return 0
	}
	return (last - first) / first
}
