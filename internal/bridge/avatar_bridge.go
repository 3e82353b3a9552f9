package bridge

import (
	"github.com/kevingtzz/BMO-project/internal/avatar"
	"github.com/kevingtzz/BMO-project/internal/bus"
)

// AvatarBridge exposes the face state and the expression tester
type AvatarBridge struct {
	emitter    Emitter
	controller *avatar.Controller
	tester     *avatar.Tester
	eventBus   *bus.EventBus
}

// NewAvatarBridge creates the avatar bridge
func NewAvatarBridge(controller *avatar.Controller, eventBus *bus.EventBus) *AvatarBridge {
	return &AvatarBridge{
		controller: controller,
		tester:     avatar.NewTester(controller.Catalog()),
		eventBus:   eventBus,
	}
}

// Bind starts emitting face events to emitter
func (b *AvatarBridge) Bind(emitter Emitter) {
	b.emitter = emitter

	// Emit state changes to the surface
	b.controller.SetStateHandler(func(state avatar.Snapshot) {
		b.emitter.Emit(EventStateChanged, state)
	})

	b.eventBus.Subscribe(bus.EventTypePresetApplied, func(e bus.Event) {
		if preset, ok := e.Data["preset"].(string); ok {
			b.emitter.Emit(EventPreset, preset)
		}
	})

	b.eventBus.Subscribe(bus.EventTypeDiagnostic, func(e bus.Event) {
		b.emitter.Emit(EventDiagnostic, e.Data)
	})
}

// GetState returns the current face state
func (b *AvatarBridge) GetState() avatar.Snapshot {
	return b.controller.Snapshot()
}

// GetSpeech returns the speech bubble text, "..." while nothing is said
func (b *AvatarBridge) GetSpeech() string {
	return b.controller.Snapshot().DisplayText()
}

// SetEmotion applies a preset by name or alias
func (b *AvatarBridge) SetEmotion(name string) {
	b.controller.ApplyPreset(name)
}

// ListExpressions returns the canonical preset names in tester order
func (b *AvatarBridge) ListExpressions() []string {
	return b.controller.Catalog().Names()
}

// CurrentExpression returns the tester's selection
func (b *AvatarBridge) CurrentExpression() string {
	return b.tester.Current()
}

// NextExpression selects and applies the next preset
func (b *AvatarBridge) NextExpression() string {
	name := b.tester.Next()
	b.controller.ApplyPreset(name)
	return name
}

// PrevExpression selects and applies the previous preset
func (b *AvatarBridge) PrevExpression() string {
	name := b.tester.Prev()
	b.controller.ApplyPreset(name)
	return name
}

// SelectExpression selects and applies a canonical preset
func (b *AvatarBridge) SelectExpression(name string) bool {
	if !b.tester.Select(name) {
		return false
	}
	b.controller.ApplyPreset(name)
	return true
}

// ResetSpeech clears the displayed text and any pending utterance
func (b *AvatarBridge) ResetSpeech() {
	b.controller.ResetTransient()
}
