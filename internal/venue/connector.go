package venue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// readDeadlineFactor: the read deadline is this many heartbeat
	// intervals, so a dead peer surfaces as a read error and drives the
	// normal reconnect path.
	readDeadlineFactor = 3
)

// Config holds the reconnect and heartbeat policy for one connector.
type Config struct {
	// ReconnectDelay is the base delay before the first retry; it doubles
	// per attempt up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// MaxReconnectAttempts is the number of consecutive failed connects
	// after which the connector enters terminal Failed.
	MaxReconnectAttempts int

	// HeartbeatInterval is the keep-alive ping cadence while connected.
	HeartbeatInterval time.Duration
}

// Connector owns one streaming connection to a venue/market-type feed. It
// parses inbound messages through its Codec and emits normalized quotes on
// the out channel. All lifecycle transitions happen inside Run.
type Connector struct {
	codec  Codec
	cfg    Config
	out    chan<- domain.Quote
	logger *slog.Logger

	mu         sync.Mutex
	subscribed map[string]struct{}
	conn       *websocket.Conn
	attempt    int

	// writeMu serializes socket writes: the heartbeat goroutine and a
	// Subscribe caller may both write while connected, and gorilla/websocket
	// supports only one concurrent writer.
	writeMu sync.Mutex

	status   atomic.Int32
	dropped  atomic.Uint64
	accepted atomic.Uint64
}

// NewConnector creates a connector for the given codec. Quotes are emitted
// on out; the channel is never closed by the connector.
func NewConnector(codec Codec, cfg Config, out chan<- domain.Quote, logger *slog.Logger) *Connector {
	return &Connector{
		codec:      codec,
		cfg:        cfg,
		out:        out,
		subscribed: make(map[string]struct{}),
		logger: logger.With(
			slog.String("component", "connector"),
			slog.String("venue", codec.Venue()),
			slog.String("market_type", string(codec.MarketType())),
		),
	}
}

// Subscribe adds symbols to the desired subscription set. If the connector
// is currently connected the subscribe frames are sent immediately;
// otherwise the symbols are buffered and flushed on the next successful
// connect.
func (c *Connector) Subscribe(symbols []string) {
	c.mu.Lock()
	added := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := c.subscribed[s]; !ok {
			c.subscribed[s] = struct{}{}
			added = append(added, s)
		}
	}
	conn := c.conn
	c.mu.Unlock()

	if len(added) == 0 {
		return
	}
	if c.Status() == domain.StatusConnected && conn != nil {
		if err := c.sendSubscribe(conn, added); err != nil {
			// The next reconnect replays the full set.
			c.logger.Warn("subscribe send failed", slog.String("error", err.Error()))
		}
	}
}

// Status returns the current lifecycle state.
func (c *Connector) Status() domain.ConnectorStatus {
	return domain.ConnectorStatus(c.status.Load())
}

// State returns a snapshot for the status API.
func (c *Connector) State() domain.ConnectorState {
	c.mu.Lock()
	symbols := make([]string, 0, len(c.subscribed))
	for s := range c.subscribed {
		symbols = append(symbols, s)
	}
	attempt := c.attempt
	c.mu.Unlock()
	sort.Strings(symbols)

	status := c.Status()
	return domain.ConnectorState{
		Venue:             c.codec.Venue(),
		MarketType:        c.codec.MarketType(),
		Status:            status,
		StatusName:        status.String(),
		SubscribedSymbols: symbols,
		ReconnectAttempt:  attempt,
		MessagesDropped:   c.dropped.Load(),
		QuotesAccepted:    c.accepted.Load(),
	}
}

// Run drives the connector lifecycle until ctx is cancelled or the
// connector fails terminally. State machine:
//
//	Disconnected -> Connecting -> Connected
//	Connected -> ReconnectPending -> Connecting   (socket close / error)
//	ReconnectPending -> Failed                    (attempts exhausted)
//
// On entering Connected the entire remembered symbol set is resubscribed.
// Exceeding MaxReconnectAttempts returns an error wrapping
// domain.ErrConnectorFailed; callers surface that to operators because data
// for the venue silently stops.
func (c *Connector) Run(ctx context.Context) error {
	defer func() {
		if c.Status() != domain.StatusFailed {
			c.setStatus(domain.StatusDisconnected)
		}
	}()

	for {
		c.setStatus(domain.StatusConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("connect failed", slog.String("error", err.Error()))
			if retryErr := c.waitRetry(ctx); retryErr != nil {
				return retryErr
			}
			continue
		}

		c.setStatus(domain.StatusConnected)
		c.mu.Lock()
		c.conn = conn
		c.attempt = 0
		symbols := make([]string, 0, len(c.subscribed))
		for s := range c.subscribed {
			symbols = append(symbols, s)
		}
		c.mu.Unlock()
		c.logger.Info("connected", slog.Int("symbols", len(symbols)))

		if err := c.sendSubscribe(conn, symbols); err != nil {
			c.logger.Warn("resubscribe failed", slog.String("error", err.Error()))
			c.teardown(conn)
			if retryErr := c.waitRetry(ctx); retryErr != nil {
				return retryErr
			}
			continue
		}

		// Heartbeat runs per connection and is stopped before the socket
		// closes, so no ping races the teardown.
		heartbeatDone := make(chan struct{})
		var heartbeatExited sync.WaitGroup
		if c.cfg.HeartbeatInterval > 0 {
			heartbeatExited.Add(1)
			go func() {
				defer heartbeatExited.Done()
				c.heartbeat(conn, heartbeatDone)
			}()
		}

		readErr := c.readLoop(ctx, conn)

		close(heartbeatDone)
		heartbeatExited.Wait()
		c.teardown(conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("stream closed", slog.String("error", readErr.Error()))
		if retryErr := c.waitRetry(ctx); retryErr != nil {
			return retryErr
		}
	}
}

// dial opens the WebSocket connection and installs the pong handler that
// extends the read deadline.
func (c *Connector) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.codec.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("venue: dial %s: %w", c.codec.URL(), err)
	}

	if deadline := c.readDeadline(); deadline > 0 {
		conn.SetReadDeadline(time.Now().Add(deadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(deadline))
			return nil
		})
	}
	return conn, nil
}

func (c *Connector) readDeadline() time.Duration {
	if c.cfg.HeartbeatInterval <= 0 {
		return 0
	}
	return c.cfg.HeartbeatInterval * readDeadlineFactor
}

// readLoop consumes inbound messages until the socket errors. Individual
// malformed messages are counted and skipped without closing the socket.
func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) error {
	deadline := c.readDeadline()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("venue: read: %w", err)
		}
		if deadline > 0 {
			conn.SetReadDeadline(time.Now().Add(deadline))
		}

		quote, ok, err := c.codec.Parse(raw)
		if err != nil {
			c.dropped.Add(1)
			c.logger.Debug("dropped message", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		if !quote.Valid() {
			c.dropped.Add(1)
			continue
		}

		c.accepted.Add(1)
		select {
		case c.out <- quote:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// heartbeat sends keep-alive pings at the configured interval while the
// connection is up. Venues with an application-level ping get a text frame;
// the rest get WebSocket protocol pings.
func (c *Connector) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			var err error
			if frame, ok := c.codec.PingFrame(); ok {
				err = c.writeFrame(conn, websocket.TextMessage, frame)
			} else {
				err = c.writeFrame(conn, websocket.PingMessage, nil)
			}
			if err != nil {
				// The read loop observes the broken socket and reconnects.
				return
			}
		}
	}
}

// sendSubscribe renders and writes the subscribe frames for symbols.
func (c *Connector) sendSubscribe(conn *websocket.Conn, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	frames, err := c.codec.SubscribeFrames(symbols)
	if err != nil {
		return fmt.Errorf("venue: build subscribe frames: %w", err)
	}
	for _, frame := range frames {
		if err := c.writeFrame(conn, websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("venue: send subscribe: %w", err)
		}
	}
	return nil
}

// writeFrame writes one frame under writeMu with the standard deadline.
func (c *Connector) writeFrame(conn *websocket.Conn, messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}

// waitRetry schedules the next connect attempt with capped exponential
// backoff. It returns a terminal error once the attempt budget is spent.
func (c *Connector) waitRetry(ctx context.Context) error {
	c.mu.Lock()
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	if attempt > c.cfg.MaxReconnectAttempts {
		c.setStatus(domain.StatusFailed)
		c.logger.Error("max reconnect attempts exceeded, connector failed",
			slog.Int("attempts", attempt-1),
		)
		return fmt.Errorf("venue: %s %s: %w",
			c.codec.Venue(), c.codec.MarketType(), domain.ErrConnectorFailed)
	}

	c.setStatus(domain.StatusReconnectPending)
	delay := c.backoff(attempt)
	c.logger.Info("reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns the delay before the given attempt: base doubling per
// attempt, capped.
func (c *Connector) backoff(attempt int) time.Duration {
	delay := c.cfg.ReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxReconnectDelay {
			return c.cfg.MaxReconnectDelay
		}
	}
	if c.cfg.MaxReconnectDelay > 0 && delay > c.cfg.MaxReconnectDelay {
		delay = c.cfg.MaxReconnectDelay
	}
	return delay
}

func (c *Connector) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

func (c *Connector) setStatus(s domain.ConnectorStatus) {
	c.status.Store(int32(s))
}
