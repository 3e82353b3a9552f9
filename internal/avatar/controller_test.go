package avatar

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kevingtzz/BMO-project/internal/bus"
	"github.com/kevingtzz/BMO-project/internal/contract"
	"github.com/kevingtzz/BMO-project/internal/expression"
	"github.com/kevingtzz/BMO-project/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink stands in for brainlink.Client. Tests drive its signals.
type fakeLink struct {
	mu           sync.Mutex
	open         bool
	connects     int
	sent         []any
	onConnect    func()
	onDisconnect func()
	onMessage    func([]byte)
}

func (l *fakeLink) Connect(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
}

func (l *fakeLink) Disconnect() {
	l.mu.Lock()
	l.open = false
	fn := l.onDisconnect
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *fakeLink) Send(payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		l.sent = append(l.sent, payload)
	}
}

func (l *fakeLink) OnConnect(fn func())       { l.onConnect = fn }
func (l *fakeLink) OnDisconnect(fn func())    { l.onDisconnect = fn }
func (l *fakeLink) OnMessage(fn func([]byte)) { l.onMessage = fn }

func (l *fakeLink) accept() {
	l.mu.Lock()
	l.open = true
	l.mu.Unlock()
	l.onConnect()
}

func (l *fakeLink) deliver(frames ...string) {
	for _, f := range frames {
		l.onMessage([]byte(f))
	}
}

// fakeScheduler holds timers until the test fires them
type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

func (s *fakeScheduler) armed() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	f := s.funcs[i]
	s.mu.Unlock()
	f()
}

type harness struct {
	c       *Controller
	link    *fakeLink
	sched   *fakeScheduler
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		link:    &fakeLink{},
		sched:   &fakeScheduler{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	opts = append([]Option{WithScheduler(h.sched), WithMetrics(h.metrics)}, opts...)
	h.c = NewController(h.link, contract.Default(), zerolog.Nop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// flush waits until everything posted so far has been processed
func (h *harness) flush() {
	done := make(chan struct{})
	h.c.post(func() { close(done) })
	<-done
}

func (h *harness) connect() {
	h.c.Connect(context.Background())
	h.link.accept()
	h.flush()
}

func TestControllerConnectLifecycle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Disconnected, h.c.Snapshot().Connection)

	h.c.Connect(context.Background())
	h.flush()
	assert.Equal(t, Connecting, h.c.Snapshot().Connection)
	assert.Equal(t, 1, h.link.connects)

	h.link.accept()
	h.flush()
	snap := h.c.Snapshot()
	assert.Equal(t, Connected, snap.Connection)
	assert.Equal(t, face(expression.EyeNeutral, expression.MouthIdle, false), snap.Face)

	h.c.Disconnect()
	h.flush()
	snap = h.c.Snapshot()
	assert.Equal(t, Disconnected, snap.Connection)
	assert.Equal(t, face(expression.EyeSleeping, expression.MouthSleeping, false), snap.Face)
}

func TestControllerDisconnectWithoutConnect(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var states []ConnectionState
	h.c.SetStateHandler(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.Connection)
		mu.Unlock()
	})

	h.c.Connect(context.Background())
	h.c.Disconnect()
	h.flush()

	assert.Equal(t, Disconnected, h.c.Snapshot().Connection)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ConnectionState{Connecting, Disconnected}, states)
}

func TestControllerAppliesFramesInOrder(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.link.deliver(
		`{"type":"message_start","id":"A"}`,
		`{"type":"message_chunk","id":"A","index":0,"text":"He"}`,
		`{"type":"message_chunk","id":"B","index":0,"text":"XX"}`,
		`{"type":"message_chunk","id":"A","index":1,"text":"llo"}`,
		`{"type":"message_end","id":"A"}`,
		`{"type":"emotion","value":"happy"}`,
		`{"type":"state","value":"speaking"}`,
	)
	h.flush()

	snap := h.c.Snapshot()
	assert.Equal(t, "Hello", snap.Text)
	assert.False(t, snap.Streaming)
	assert.Equal(t, face(expression.EyeHappy, expression.MouthSpeaking, true), snap.Face)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.StaleChunks))
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.FramesReceived.WithLabelValues("message_chunk")))

	h.link.deliver(`{"type":"speaking_end"}`)
	h.flush()
	assert.Equal(t, face(expression.EyeHappy, expression.MouthSmile, false), h.c.Snapshot().Face)
}

func TestControllerIgnoresJunk(t *testing.T) {
	h := newHarness(t)
	h.connect()
	before := h.c.Snapshot()

	h.link.deliver(
		`not json at all`,
		`{"type":"dance","moves":3}`,
		`{"value":"happy"}`,
		`{"type":"emotion","value":"zzz"}`,
	)
	h.flush()

	assert.Equal(t, before, h.c.Snapshot())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.MalformedFrames))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.FramesReceived.WithLabelValues("unrecognized")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.UnknownPresets))
}

func TestControllerTimedReversion(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.link.deliver(`{"type":"emotion","value":"happy","duration_ms":500}`)
	h.flush()
	assert.Equal(t, face(expression.EyeHappy, expression.MouthSmile, false), h.c.Snapshot().Face)
	require.Equal(t, []time.Duration{500 * time.Millisecond}, h.sched.armed())

	h.sched.fire(0)
	h.flush()

	snap := h.c.Snapshot()
	assert.Equal(t, face(expression.EyeNeutral, expression.MouthIdle, false), snap.Face)
	assert.Equal(t, expression.Baseline, snap.LastStable)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ReversionsFired))
}

func TestControllerSupersededReversion(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.link.deliver(
		`{"type":"emotion","value":"happy","duration_ms":500}`,
		`{"type":"emotion","value":"sad","duration_ms":2000}`,
	)
	h.flush()
	require.Len(t, h.sched.armed(), 2)

	// The second timer fires first; the stale one must not clobber it.
	h.sched.fire(1)
	h.flush()
	assert.Equal(t, face(expression.EyeNeutral, expression.MouthIdle, false), h.c.Snapshot().Face)

	h.link.deliver(`{"type":"emotion","value":"angry"}`)
	h.sched.fire(0)
	h.flush()

	assert.Equal(t, face(expression.EyeAngry, expression.MouthFlat, false), h.c.Snapshot().Face)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ReversionsSuperseded))
}

func TestControllerLastFiredReversion(t *testing.T) {
	h := newHarness(t, WithReversionPolicy(ReversionLastFired))
	h.connect()

	h.link.deliver(
		`{"type":"emotion","value":"happy","duration_ms":500}`,
		`{"type":"emotion","value":"angry"}`,
	)
	h.flush()
	h.sched.fire(0)
	h.flush()

	assert.Equal(t, face(expression.EyeNeutral, expression.MouthIdle, false), h.c.Snapshot().Face)
}

func TestControllerContractMismatchIsDiagnostic(t *testing.T) {
	b := bus.NewEventBus()
	diags := make(chan bus.Event, 1)
	b.Subscribe(bus.EventTypeDiagnostic, func(e bus.Event) { diags <- e })

	h := newHarness(t, WithBus(b))
	h.connect()

	h.link.deliver(`{"type":"contract_info","version":"9.9.9"}`)
	h.flush()

	select {
	case e := <-diags:
		assert.Equal(t, "contract_mismatch", e.Data["kind"])
		assert.Equal(t, "9.9.9", e.Data["brain"])
	case <-time.After(time.Second):
		t.Fatal("no diagnostic published")
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ContractMismatch))
	assert.Equal(t, Connected, h.c.Snapshot().Connection)
	assert.True(t, h.c.Snapshot().ContractMismatch())
}

func TestControllerPublishesFaceChanges(t *testing.T) {
	b := bus.NewEventBus()
	faces := make(chan Snapshot, 8)
	b.Subscribe(bus.EventTypeFaceChanged, func(e bus.Event) { faces <- e.Data["snapshot"].(Snapshot) })

	h := newHarness(t, WithBus(b))
	h.connect()
	h.c.ApplyPreset("love")
	h.flush()

	assert.Eventually(t, func() bool {
		for {
			select {
			case s := <-faces:
				if s.Face.Eyes == expression.EyeLove {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)
}

func TestControllerSubmitInput(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.c.SubmitInput("dropped while down"))
	h.connect()
	assert.False(t, h.c.SubmitInput("   "))
	assert.True(t, h.c.SubmitInput("  tell me a joke "))

	h.link.mu.Lock()
	defer h.link.mu.Unlock()
	require.Len(t, h.link.sent, 1)
	data, err := json.Marshal(h.link.sent[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"input","text":"tell me a joke"}`, string(data))
}

func TestControllerReconnectResetsTransient(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.link.deliver(
		`{"type":"message_start","id":"A"}`,
		`{"type":"message_chunk","id":"A","index":0,"text":"interrupted"}`,
		`{"type":"emotion","value":"happy","duration_ms":500}`,
	)
	h.flush()

	h.c.Disconnect()
	h.flush()
	assert.Equal(t, "interrupted", h.c.Snapshot().Text)

	h.c.Reconnect(context.Background())
	h.link.accept()
	h.flush()

	snap := h.c.Snapshot()
	assert.Equal(t, Connected, snap.Connection)
	assert.Empty(t, snap.Text)
	assert.False(t, snap.Streaming)

	// The reversion armed before the disconnect still fires.
	h.sched.fire(0)
	h.flush()
	assert.Equal(t, face(expression.EyeNeutral, expression.MouthIdle, false), h.c.Snapshot().Face)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ReversionsFired))
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.ReversionsSuperseded))
}

func TestControllerApplyPresetFromTester(t *testing.T) {
	h := newHarness(t)
	h.connect()
	tester := NewTester(h.c.Catalog())

	h.c.ApplyPreset(tester.Next())
	h.flush()

	assert.Equal(t, face(expression.EyeHappy, expression.MouthSmile, false), h.c.Snapshot().Face)
}

func TestPostAfterRunReturns(t *testing.T) {
	link := &fakeLink{}
	c := NewController(link, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)

	for i := 0; i < inboxSize+10; i++ {
		c.ApplyPreset("happy")
	}
	assert.Equal(t, Disconnected, c.Snapshot().Connection)
}
