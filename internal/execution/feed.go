package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tradegate/internal/domain"
)

// FeedConfig configures the outcome feed connection.
type FeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing ping frames.
	WriteTimeout time.Duration
	// Buffer bounds the outcome channel.
	Buffer int
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// OutcomeFeed streams TradeOutcome events from the execution venue over a
// WebSocket. Reconnects with exponential backoff; outcome ordering across a
// reconnect is the risk gate's problem, not the feed's.
type OutcomeFeed struct {
	endpoint string
	cfg      FeedConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	outcomes chan *domain.TradeOutcome

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// outcomeMessage is the wire form of one fill event.
type outcomeMessage struct {
	DecisionID       string  `json:"decision_id"`
	Sequence         uint64  `json:"sequence"`
	RealizedPnL      float64 `json:"realized_pnl"`
	SlippageFraction float64 `json:"slippage_fraction"`
	Timestamp        int64   `json:"timestamp"`
}

// NewOutcomeFeed connects to the endpoint and starts streaming.
func NewOutcomeFeed(ctx context.Context, endpoint string, cfg *FeedConfig, logger *log.Logger) (*OutcomeFeed, error) {
	c := DefaultFeedConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultFeedConfig().Buffer
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &OutcomeFeed{
		endpoint: endpoint,
		cfg:      c,
		logger:   logger,
		outcomes: make(chan *domain.TradeOutcome, c.Buffer),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// Outcomes delivers fills as they arrive. Closed by Close.
func (f *OutcomeFeed) Outcomes() <-chan *domain.TradeOutcome {
	return f.outcomes
}

// connect establishes the WebSocket connection.
func (f *OutcomeFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("outcome feed dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Close shuts the feed down and closes the outcome channel.
func (f *OutcomeFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.outcomes)
	return nil
}

// readLoop reads fill messages and dispatches them, reconnecting on error.
func (f *OutcomeFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.cfg.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.cfg.MaxReconnectDelay {
				reconnectDelay = f.cfg.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.cfg.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect waits out the backoff delay and re-dials.
func (f *OutcomeFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		f.logger.Printf("outcome feed reconnect failed: %v", err)
		return
	}
	f.logger.Printf("outcome feed reconnected")
}

// handleMessage parses one fill and forwards it. Blocking send: a fill is
// never dropped while the feed is open.
func (f *OutcomeFeed) handleMessage(message []byte) {
	var msg outcomeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.logger.Printf("outcome feed: discarding unparseable message: %v", err)
		return
	}
	if msg.DecisionID == "" || msg.Sequence == 0 {
		f.logger.Printf("outcome feed: discarding fill without decision reference")
		return
	}

	outcome := &domain.TradeOutcome{
		DecisionID:       msg.DecisionID,
		Sequence:         msg.Sequence,
		RealizedPnL:      msg.RealizedPnL,
		SlippageFraction: msg.SlippageFraction,
		Timestamp:        msg.Timestamp,
	}

	select {
	case f.outcomes <- outcome:
	case <-f.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *OutcomeFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}
