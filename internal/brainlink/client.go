// Package brainlink maintains the face's WebSocket link to the brain.
package brainlink

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kevingtzz/BMO-project/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultURL is used when no endpoint is configured
const DefaultURL = "ws://localhost:8765"

// State is the transport state of the link
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Config configures the link
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Option customizes a Client
type Option func(*Client)

// WithDialer replaces the default WebSocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithMetrics records link activity on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is a single WebSocket connection to the brain with three callback
// slots. Each slot holds at most one handler; registering replaces it.
//
// Transport failures never reach callers as errors. They end in the
// disconnect callback. There is no automatic reconnection.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
	// gen invalidates read loops and in-flight dials superseded by Disconnect
	gen uint64

	onConnect    func()
	onDisconnect func()
	onMessage    func([]byte)

	// signalMu orders the connect and disconnect signals. A connect signal
	// for a generation never follows that generation's disconnect signal.
	signalMu sync.Mutex

	writeMu sync.Mutex
}

// NewClient creates an unconnected client
func NewClient(cfg Config, logger zerolog.Logger, opts ...Option) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	dialer := *websocket.DefaultDialer
	if cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.HandshakeTimeout
	}
	c := &Client{
		url:    cfg.URL,
		dialer: &dialer,
		logger: logger.With().Str("component", "brainlink").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the brain endpoint
func (c *Client) URL() string {
	return c.url
}

// State returns the current transport state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnConnect sets the handler fired once the link is open
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// OnDisconnect sets the handler fired when the link closes or fails
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// OnMessage sets the handler for inbound frames
func (c *Client) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// Connect dials the brain in the background. It is a no-op while a
// connection is open or being established.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.metrics.SetConnectionState(float64(StateConnecting))
	go c.run(ctx, gen)
}

// Disconnect closes the transport if open and always fires the disconnect
// handler, exactly once per call. Handlers must not call Disconnect
// synchronously.
func (c *Client) Disconnect() {
	c.signalMu.Lock()
	defer c.signalMu.Unlock()

	c.mu.Lock()
	c.gen++
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	handler := c.onDisconnect
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
		c.logger.Info().Msg("Disconnected from brain")
	}

	c.metrics.SetConnectionState(float64(StateClosed))
	c.metrics.Disconnected()
	if handler != nil {
		handler()
	}
}

// Send writes payload as one text frame. Strings and byte slices are sent
// verbatim; anything else is JSON encoded. The frame is dropped silently
// unless the link is open.
func (c *Client) Send(payload any) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.metrics.SendDropped()
		c.logger.Debug().Msg("Send dropped, link not open")
		return
	}

	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to encode outbound payload")
			return
		}
		data = encoded
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.metrics.SendDropped()
		c.logger.Debug().Err(err).Msg("Send failed")
		return
	}
	c.metrics.FrameSent()
}

// run dials and then pumps inbound frames until the connection ends
func (c *Client) run(ctx context.Context, gen uint64) {
	c.logger.Info().Str("url", c.url).Msg("Connecting to brain")

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.url).Msg("Brain connection failed")
		c.closed(gen)
		return
	}

	c.signalMu.Lock()
	c.mu.Lock()
	if c.gen != gen {
		// Disconnect won the race; it already signalled.
		c.mu.Unlock()
		c.signalMu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	onConnect := c.onConnect
	c.mu.Unlock()

	c.logger.Info().Str("url", c.url).Msg("Connected to brain")
	c.metrics.SetConnectionState(float64(StateOpen))
	c.metrics.Connected()
	if onConnect != nil {
		onConnect()
	}
	c.signalMu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().Msg("Brain closed the connection")
			} else {
				c.logger.Debug().Err(err).Msg("Read loop ended")
			}
			conn.Close()
			c.closed(gen)
			return
		}

		c.mu.Lock()
		current := c.gen == gen
		onMessage := c.onMessage
		c.mu.Unlock()
		if !current {
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// closed records the end of connection gen and signals, unless Disconnect
// already did.
func (c *Client) closed(gen uint64) {
	c.signalMu.Lock()
	defer c.signalMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	handler := c.onDisconnect
	c.mu.Unlock()

	c.metrics.SetConnectionState(float64(StateClosed))
	c.metrics.Disconnected()
	if handler != nil {
		handler()
	}
}
