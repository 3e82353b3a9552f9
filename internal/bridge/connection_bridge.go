package bridge

import (
	"context"
	"sync"

	"github.com/kevingtzz/BMO-project/internal/avatar"
	"github.com/kevingtzz/BMO-project/internal/bus"
	"github.com/rs/zerolog"
)

// ConnectionBridge exposes the brain connection and text input
type ConnectionBridge struct {
	ctx        context.Context
	emitter    Emitter
	controller *avatar.Controller
	eventBus   *bus.EventBus
	serverURL  string
	logger     zerolog.Logger

	statusMu sync.Mutex
	lastSeq  uint64
}

// NewConnectionBridge creates the connection bridge
func NewConnectionBridge(
	controller *avatar.Controller,
	eventBus *bus.EventBus,
	serverURL string,
	logger zerolog.Logger,
) *ConnectionBridge {
	return &ConnectionBridge{
		ctx:        context.Background(),
		controller: controller,
		eventBus:   eventBus,
		serverURL:  serverURL,
		logger:     logger.With().Str("component", "connection-bridge").Logger(),
	}
}

// Bind emits connection status changes to emitter. ctx bounds dials made
// through this bridge.
func (b *ConnectionBridge) Bind(ctx context.Context, emitter Emitter) {
	b.ctx = ctx
	b.emitter = emitter

	b.eventBus.SubscribeMultiple([]bus.EventType{
		bus.EventTypeConnecting,
		bus.EventTypeConnected,
		bus.EventTypeDisconnected,
	}, b.emitStatus)
}

// emitStatus reports the state the event carries, not whatever the
// controller holds by now. The bus delivers on separate goroutines, so
// events older than the last one shown are dropped.
func (b *ConnectionBridge) emitStatus(e bus.Event) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	if seq, ok := e.Data["seq"].(uint64); ok {
		if seq <= b.lastSeq {
			b.logger.Debug().Uint64("seq", seq).Msg("Dropping stale connection status")
			return
		}
		b.lastSeq = seq
	}

	status := b.GetConnectionStatus()
	state := stateForEvent(e.Type)
	status["state"] = string(state)
	status["label"] = state.Label()
	b.emitter.Emit(EventStatus, status)
}

// Connect asks the face to connect to the brain
func (b *ConnectionBridge) Connect() {
	b.controller.Connect(b.ctx)
}

// Disconnect closes the brain connection
func (b *ConnectionBridge) Disconnect() {
	b.controller.Disconnect()
}

// Reconnect drops the connection, clears the speech text and connects again
func (b *ConnectionBridge) Reconnect() {
	b.controller.Reconnect(b.ctx)
}

// IsConnected returns connection status
func (b *ConnectionBridge) IsConnected() bool {
	return b.controller.Snapshot().Connection == avatar.Connected
}

// GetServerURL returns the configured brain URL
func (b *ConnectionBridge) GetServerURL() string {
	return b.serverURL
}

// GetStatusLabel returns the status text for the connection indicator
func (b *ConnectionBridge) GetStatusLabel() string {
	return b.controller.Snapshot().Connection.Label()
}

// GetConnectionStatus returns full connection status
func (b *ConnectionBridge) GetConnectionStatus() map[string]any {
	snap := b.controller.Snapshot()
	status := map[string]any{
		"state":           string(snap.Connection),
		"label":           snap.Connection.Label(),
		"serverUrl":       b.serverURL,
		"contractVersion": snap.ContractVersion,
	}
	if snap.BrainContractVersion != "" {
		status["brainContractVersion"] = snap.BrainContractVersion
		status["contractMismatch"] = snap.ContractMismatch()
	}
	return status
}

// SendInput sends user text to the brain. It reports false for blank text.
// Text typed while disconnected is dropped.
func (b *ConnectionBridge) SendInput(text string) bool {
	if b.controller.Snapshot().Connection != avatar.Connected {
		b.logger.Debug().Msg("Input typed while disconnected will be dropped")
	}
	return b.controller.SubmitInput(text)
}

func stateForEvent(t bus.EventType) avatar.ConnectionState {
	switch t {
	case bus.EventTypeConnected:
		return avatar.Connected
	case bus.EventTypeConnecting:
		return avatar.Connecting
	default:
		return avatar.Disconnected
	}
}
