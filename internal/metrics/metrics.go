// Package metrics exposes Prometheus instrumentation for the face controller
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the face registers. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	FramesReceived       *prometheus.CounterVec
	MalformedFrames      prometheus.Counter
	StaleChunks          prometheus.Counter
	SendsDropped         prometheus.Counter
	FramesSent           prometheus.Counter
	ConnectionState      prometheus.Gauge
	Connects             prometheus.Counter
	Disconnects          prometheus.Counter
	ReversionsFired      prometheus.Counter
	ReversionsSuperseded prometheus.Counter
	ContractMismatch     prometheus.Counter
	UnknownPresets       prometheus.Counter
}

// New registers the face collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmoface_frames_received_total",
				Help: "Inbound frames by decoded event type",
			},
			[]string{"type"},
		),
		MalformedFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_frames_malformed_total",
			Help: "Inbound frames that were not JSON objects",
		}),
		StaleChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_stale_chunks_total",
			Help: "Message chunks discarded because their id was not the pending utterance",
		}),
		SendsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_sends_dropped_total",
			Help: "Outbound frames dropped because the link was not open",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_frames_sent_total",
			Help: "Outbound frames written to the link",
		}),
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Name: "bmoface_connection_state",
			Help: "0 disconnected, 1 connecting, 2 connected",
		}),
		Connects: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_connects_total",
			Help: "Successful connections to the brain",
		}),
		Disconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_disconnects_total",
			Help: "Disconnect signals observed",
		}),
		ReversionsFired: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_reversions_fired_total",
			Help: "Timed reversions that restored the baseline face",
		}),
		ReversionsSuperseded: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_reversions_superseded_total",
			Help: "Timed reversions skipped because a newer emotion was applied",
		}),
		ContractMismatch: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_contract_mismatch_total",
			Help: "contract_info events announcing a different contract version",
		}),
		UnknownPresets: f.NewCounter(prometheus.CounterOpts{
			Name: "bmoface_unknown_presets_total",
			Help: "Emotion values that resolved to no preset",
		}),
	}
}

// Frame counts one inbound frame of the given type
func (m *Metrics) Frame(typ string) {
	if m == nil {
		return
	}
	if typ == "" {
		typ = "raw"
	}
	m.FramesReceived.WithLabelValues(typ).Inc()
}

func (m *Metrics) MalformedFrame() {
	if m != nil {
		m.MalformedFrames.Inc()
	}
}

func (m *Metrics) StaleChunk() {
	if m != nil {
		m.StaleChunks.Inc()
	}
}

func (m *Metrics) SendDropped() {
	if m != nil {
		m.SendsDropped.Inc()
	}
}

func (m *Metrics) FrameSent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) Connected() {
	if m != nil {
		m.Connects.Inc()
	}
}

func (m *Metrics) Disconnected() {
	if m != nil {
		m.Disconnects.Inc()
	}
}

func (m *Metrics) ReversionFired() {
	if m != nil {
		m.ReversionsFired.Inc()
	}
}

func (m *Metrics) ReversionSuperseded() {
	if m != nil {
		m.ReversionsSuperseded.Inc()
	}
}

func (m *Metrics) ContractMismatched() {
	if m != nil {
		m.ContractMismatch.Inc()
	}
}

func (m *Metrics) UnknownPreset() {
	if m != nil {
		m.UnknownPresets.Inc()
	}
}

// SetConnectionState records the numeric connection state
func (m *Metrics) SetConnectionState(v float64) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(v)
}

// Handler serves the collectors gathered by g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
