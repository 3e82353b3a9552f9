package avatar

import (
	"context"
	"strings"
	"sync"

	"github.com/kevingtzz/BMO-project/internal/bus"
	"github.com/kevingtzz/BMO-project/internal/contract"
	"github.com/kevingtzz/BMO-project/internal/metrics"
	"github.com/kevingtzz/BMO-project/internal/protocol"
	"github.com/rs/zerolog"
)

const inboxSize = 256

// Link is the connection to the brain. brainlink.Client implements it.
type Link interface {
	Connect(ctx context.Context)
	Disconnect()
	Send(payload any)
	OnConnect(fn func())
	OnDisconnect(fn func())
	OnMessage(fn func([]byte))
}

// Option customizes a Controller
type Option func(*Controller)

// WithScheduler replaces the timer used for timed reversions
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithMetrics records controller activity on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithBus publishes state changes on b
func WithBus(b *bus.EventBus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithReversionPolicy selects the timed reversion policy
func WithReversionPolicy(p ReversionPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// Controller owns the face state machine and its link to the brain.
//
// Link callbacks, reversion timers and debug commands never touch the
// machine directly: they post closures to an inbox drained by Run, so
// inbound frames are applied strictly in delivery order.
type Controller struct {
	link    Link
	sched   Scheduler
	logger  zerolog.Logger
	metrics *metrics.Metrics
	bus     *bus.EventBus
	policy  ReversionPolicy
	machine *Machine

	inbox chan func()
	done  chan struct{}

	mu            sync.RWMutex
	snapshot      Snapshot
	seq           uint64
	onStateChange func(Snapshot)
}

// NewController creates a controller and registers its handlers on link.
// Nothing happens until Run is started and Connect is called.
func NewController(link Link, catalog *contract.Catalog, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		link:   link,
		sched:  TimerScheduler{},
		logger: logger.With().Str("component", "face").Logger(),
		policy: ReversionSuperseded,
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine = NewMachine(catalog, c.policy)
	c.snapshot = c.machine.Snapshot()

	link.OnConnect(func() { c.post(c.handleConnected) })
	link.OnDisconnect(func() { c.post(c.handleDisconnected) })
	link.OnMessage(func(data []byte) {
		ev := protocol.Decode(data)
		c.post(func() { c.handleEvent(ev) })
	})
	return c
}

// Run processes the inbox until ctx is done. It must be called once.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.inbox:
			fn()
		}
	}
}

// post queues fn for the event loop. It is dropped once Run has returned.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// SetStateHandler sets the callback for state changes. It runs on the
// event loop and must not block.
func (c *Controller) SetStateHandler(handler func(Snapshot)) {
	c.mu.Lock()
	c.onStateChange = handler
	c.mu.Unlock()
}

// Snapshot returns the latest published state
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Catalog returns the preset catalog the face resolves emotions against
func (c *Controller) Catalog() *contract.Catalog {
	return c.machine.Catalog()
}

// Connect asks the link to connect. It is a no-op while connecting or
// connected.
func (c *Controller) Connect(ctx context.Context) {
	c.post(func() {
		c.handle(c.machine.Connecting())
	})
	c.link.Connect(ctx)
}

// Disconnect closes the link. The face goes to sleep once the disconnect
// signal is processed. Displayed text is left as is.
func (c *Controller) Disconnect() {
	c.link.Disconnect()
}

// Reconnect drops the link, clears transient text and connects again
func (c *Controller) Reconnect(ctx context.Context) {
	c.link.Disconnect()
	c.ResetTransient()
	c.Connect(ctx)
}

// ResetTransient clears displayed text, any pending utterance and any armed
// reversion.
func (c *Controller) ResetTransient() {
	c.post(func() {
		c.handle(c.machine.ResetTransient())
	})
}

// SubmitInput sends user text to the brain. Blank input is ignored and the
// frame is dropped when the link is down.
func (c *Controller) SubmitInput(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	c.logger.Debug().Str("text", text).Msg("Submitting input")
	c.link.Send(protocol.Input{Text: text})
	return true
}

// ApplyPreset applies a preset by name, as an emotion without a duration
func (c *Controller) ApplyPreset(name string) {
	c.post(func() {
		res := c.machine.ApplyPreset(name)
		c.reportEmotion(name, res)
		c.handle(res)
	})
}

func (c *Controller) handleConnected() {
	c.logger.Info().Msg("Brain connected")
	c.handle(c.machine.Connected())
}

func (c *Controller) handleDisconnected() {
	c.logger.Info().Msg("Brain disconnected")
	c.handle(c.machine.Disconnected())
}

func (c *Controller) handleEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.RawText:
		c.metrics.Frame("")
		c.metrics.MalformedFrame()
		c.logger.Debug().Int("bytes", len(e.Text)).Msg("Ignoring raw frame")
		return
	case protocol.Unrecognized:
		c.metrics.Frame("unrecognized")
		c.logger.Debug().Str("type", e.Type).Str("reason", e.Reason).Msg("Ignoring unrecognized event")
		return
	default:
		c.metrics.Frame(string(ev.Kind()))
	}

	res := c.machine.Apply(ev)

	switch e := ev.(type) {
	case protocol.MessageChunk:
		if res.StaleChunk {
			c.metrics.StaleChunk()
			c.logger.Debug().Str("id", e.ID).Int("index", e.Index).Msg("Discarded stale chunk")
		}
	case protocol.Emotion:
		c.reportEmotion(e.Value, res)
	case protocol.ContractInfo:
		if res.Mismatch {
			c.metrics.ContractMismatched()
			c.logger.Warn().
				Str("brain", e.Version).
				Str("face", c.machine.Catalog().Version()).
				Msg("Face contract version mismatch")
			c.publish(bus.EventTypeDiagnostic, map[string]any{
				"kind":  "contract_mismatch",
				"brain": e.Version,
				"face":  c.machine.Catalog().Version(),
			})
		} else {
			c.logger.Debug().Str("version", e.Version).Msg("Face contract versions match")
		}
	}

	c.handle(res)
}

func (c *Controller) reportEmotion(value string, res Result) {
	switch {
	case res.Unknown:
		c.metrics.UnknownPreset()
		c.logger.Debug().Str("value", value).Msg("Ignoring unknown preset")
	case res.LegacyEye:
		c.logger.Debug().Str("value", value).Msg("Applied unknown preset as eye expression")
	case res.Preset != "":
		c.publish(bus.EventTypePresetApplied, map[string]any{"preset": res.Preset})
	}
}

func (c *Controller) revert(epoch uint64) {
	res := c.machine.Revert(epoch)
	switch {
	case res.Superseded:
		c.metrics.ReversionSuperseded()
		c.logger.Debug().Uint64("epoch", epoch).Msg("Reversion superseded")
	case res.Reverted:
		c.metrics.ReversionFired()
		c.publish(bus.EventTypeReverted, map[string]any{"epoch": epoch})
	}
	c.handle(res)
}

// handle arms any reversion and publishes the new snapshot if it changed
func (c *Controller) handle(res Result) {
	if r := res.Reversion; r != nil {
		epoch := r.Epoch
		c.sched.AfterFunc(r.Delay, func() {
			c.post(func() { c.revert(epoch) })
		})
	}
	if !res.Changed {
		return
	}

	snap := c.machine.Snapshot()
	c.mu.Lock()
	prev := c.snapshot
	c.snapshot = snap
	c.seq++
	seq := c.seq
	handler := c.onStateChange
	c.mu.Unlock()

	if handler != nil {
		handler(snap)
	}
	c.notifyStateChange(prev, snap, seq)
}

// notifyStateChange publishes bus events for what differs between prev
// and snap. The bus delivers asynchronously; seq orders the events.
func (c *Controller) notifyStateChange(prev, snap Snapshot, seq uint64) {
	if c.bus == nil {
		return
	}
	if prev.Connection != snap.Connection {
		var typ bus.EventType
		switch snap.Connection {
		case Connected:
			typ = bus.EventTypeConnected
		case Connecting:
			typ = bus.EventTypeConnecting
		default:
			typ = bus.EventTypeDisconnected
		}
		c.publish(typ, map[string]any{"seq": seq, "label": snap.Connection.Label()})
	}
	if prev.Face != snap.Face {
		c.publish(bus.EventTypeFaceChanged, map[string]any{"seq": seq, "snapshot": snap})
	}
	if prev.Text != snap.Text || prev.Streaming != snap.Streaming {
		c.publish(bus.EventTypeSpeechUpdated, map[string]any{"seq": seq, "text": snap.Text, "streaming": snap.Streaming})
	}
}

func (c *Controller) publish(typ bus.EventType, data map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Type: typ, Data: data})
}
