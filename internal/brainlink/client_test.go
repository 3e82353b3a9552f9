package brainlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kevingtzz/BMO-project/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrain is a minimal WebSocket server that records what the face sends
type fakeBrain struct {
	server   *httptest.Server
	upgrades atomic.Int32

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []string
	greeting []string
}

func newFakeBrain(t *testing.T, greeting ...string) *fakeBrain {
	t.Helper()
	b := &fakeBrain{greeting: greeting}
	upgrader := websocket.Upgrader{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.upgrades.Add(1)
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		for _, g := range b.greeting {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(g)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			b.mu.Lock()
			b.received = append(b.received, string(data))
			b.mu.Unlock()
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBrain) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *fakeBrain) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.received...)
}

func (b *fakeBrain) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
}

type recorder struct {
	connects    atomic.Int32
	disconnects atomic.Int32
	mu          sync.Mutex
	frames      []string
}

func (r *recorder) attach(c *Client) {
	c.OnConnect(func() { r.connects.Add(1) })
	c.OnDisconnect(func() { r.disconnects.Add(1) })
	c.OnMessage(func(data []byte) {
		r.mu.Lock()
		r.frames = append(r.frames, string(data))
		r.mu.Unlock()
	})
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func TestDisconnectWithoutConnect(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	var rec recorder
	rec.attach(c)

	c.Disconnect()

	assert.Equal(t, int32(1), rec.disconnects.Load())
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, DefaultURL, c.URL())
}

func TestConnectDeliversFramesInOrder(t *testing.T) {
	brain := newFakeBrain(t, `{"type":"contract_info","version":"1.2.0"}`, "one", "two")
	c := NewClient(Config{URL: brain.url()}, zerolog.Nop())
	var rec recorder
	rec.attach(c)

	c.Connect(context.Background())
	t.Cleanup(c.Disconnect)

	require.Eventually(t, func() bool { return len(rec.received()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`{"type":"contract_info","version":"1.2.0"}`, "one", "two"}, rec.received())
	assert.Equal(t, int32(1), rec.connects.Load())
	assert.Equal(t, StateOpen, c.State())
}

func TestSendEncodesPayloads(t *testing.T) {
	brain := newFakeBrain(t)
	c := NewClient(Config{URL: brain.url()}, zerolog.Nop())
	c.Connect(context.Background())
	t.Cleanup(c.Disconnect)
	require.Eventually(t, func() bool { return c.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	c.Send("plain")
	c.Send(map[string]string{"type": "input", "text": "hola"})
	c.Send([]byte("bytes"))

	require.Eventually(t, func() bool { return len(brain.messages()) == 3 }, 2*time.Second, 10*time.Millisecond)
	msgs := brain.messages()
	assert.Equal(t, "plain", msgs[0])
	assert.JSONEq(t, `{"type":"input","text":"hola"}`, msgs[1])
	assert.Equal(t, "bytes", msgs[2])
}

func TestSendDroppedWhenClosed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := NewClient(Config{URL: "ws://127.0.0.1:1"}, zerolog.Nop(), WithMetrics(m))

	c.Send(map[string]string{"type": "input", "text": "lost"})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SendsDropped))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.FramesSent))
}

func TestConnectIsIdempotent(t *testing.T) {
	brain := newFakeBrain(t)
	c := NewClient(Config{URL: brain.url()}, zerolog.Nop())
	var rec recorder
	rec.attach(c)

	c.Connect(context.Background())
	c.Connect(context.Background())
	t.Cleanup(c.Disconnect)
	require.Eventually(t, func() bool { return c.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)
	c.Connect(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), brain.upgrades.Load())
	assert.Equal(t, int32(1), rec.connects.Load())
}

func TestDisconnectWhileOpenSignalsOnce(t *testing.T) {
	brain := newFakeBrain(t)
	c := NewClient(Config{URL: brain.url()}, zerolog.Nop())
	var rec recorder
	rec.attach(c)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	c.Disconnect()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), rec.disconnects.Load())
	assert.Equal(t, StateClosed, c.State())

	c.Send("after close")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, brain.messages())
}

func TestRemoteCloseSignalsDisconnect(t *testing.T) {
	brain := newFakeBrain(t)
	c := NewClient(Config{URL: brain.url()}, zerolog.Nop())
	var rec recorder
	rec.attach(c)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	brain.closeAll()

	require.Eventually(t, func() bool { return rec.disconnects.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
}

func TestDialFailureSignalsDisconnect(t *testing.T) {
	brain := newFakeBrain(t)
	url := brain.url()
	brain.server.Close()

	c := NewClient(Config{URL: url, HandshakeTimeout: time.Second}, zerolog.Nop())
	var rec recorder
	rec.attach(c)

	c.Connect(context.Background())

	require.Eventually(t, func() bool { return rec.disconnects.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), rec.connects.Load())
	assert.Equal(t, StateClosed, c.State())
}

func TestLastRegistrationWins(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	var first, second atomic.Int32
	c.OnDisconnect(func() { first.Add(1) })
	c.OnDisconnect(func() { second.Add(1) })

	c.Disconnect()

	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestDisconnectWaitsForConnectSignal(t *testing.T) {
	brain := newFakeBrain(t)
	c := NewClient(Config{URL: brain.url()}, zerolog.Nop())

	var mu sync.Mutex
	var signals []string
	record := func(s string) {
		mu.Lock()
		signals = append(signals, s)
		mu.Unlock()
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	c.OnConnect(func() {
		close(entered)
		<-release
		record("connect")
	})
	c.OnDisconnect(func() { record("disconnect") })

	c.Connect(context.Background())
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("connect signal never fired")
	}

	done := make(chan struct{})
	go func() {
		c.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Disconnect signalled while the connect signal was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect never returned")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connect", "disconnect"}, signals)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnectDisconnectRaceEndsDisconnected(t *testing.T) {
	brain := newFakeBrain(t)

	type link struct {
		c    *Client
		mu   sync.Mutex
		last string
	}
	links := make([]*link, 50)
	for i := range links {
		l := &link{c: NewClient(Config{URL: brain.url()}, zerolog.Nop())}
		l.c.OnConnect(func() { l.mu.Lock(); l.last = "connect"; l.mu.Unlock() })
		l.c.OnDisconnect(func() { l.mu.Lock(); l.last = "disconnect"; l.mu.Unlock() })
		links[i] = l

		l.c.Connect(context.Background())
		if i%2 == 0 {
			time.Sleep(time.Duration(i%5) * time.Millisecond)
		}
		l.c.Disconnect()
	}

	assert.Never(t, func() bool {
		for _, l := range links {
			l.mu.Lock()
			last := l.last
			l.mu.Unlock()
			if last != "disconnect" {
				return true
			}
		}
		return false
	}, 300*time.Millisecond, 10*time.Millisecond)
}
