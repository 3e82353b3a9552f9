package bridge

import (
	"context"

	"github.com/kevingtzz/BMO-project/internal/bus"
	"github.com/kevingtzz/BMO-project/internal/calibration"
	"github.com/rs/zerolog"
)

// SettingsBridge exposes the background color calibration
type SettingsBridge struct {
	emitter  Emitter
	store    *calibration.Store
	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewSettingsBridge creates a new settings bridge
func NewSettingsBridge(store *calibration.Store, eventBus *bus.EventBus, logger zerolog.Logger) *SettingsBridge {
	return &SettingsBridge{
		store:    store,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "settings").Logger(),
	}
}

// Bind emits background changes to emitter and watches the preference file
// for edits made outside the face until ctx is done.
func (b *SettingsBridge) Bind(ctx context.Context, emitter Emitter) {
	b.emitter = emitter

	b.eventBus.Subscribe(bus.EventTypeBackgroundChanged, func(e bus.Event) {
		if c, ok := e.Data["color"].(calibration.Color); ok {
			b.emitter.Emit(EventBackground, c)
		}
	})

	go func() {
		if err := b.store.Watch(ctx, b.publish); err != nil {
			b.logger.Warn().Err(err).Msg("Background preference will not live-reload")
		}
	}()
}

// GetBackground returns the background color in effect
func (b *SettingsBridge) GetBackground() calibration.Color {
	return b.store.Current()
}

// SetBackground clamps, saves and applies a background color
func (b *SettingsBridge) SetBackground(r, g, bl int) (calibration.Color, error) {
	c, err := b.store.Save(calibration.Color{R: r, G: g, B: bl})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to save background preference")
		return c, err
	}
	b.publish(c)
	return c, nil
}

// ResetBackground restores the default background color
func (b *SettingsBridge) ResetBackground() (calibration.Color, error) {
	c, err := b.store.Reset()
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to reset background preference")
		return c, err
	}
	b.publish(c)
	return c, nil
}

func (b *SettingsBridge) publish(c calibration.Color) {
	b.eventBus.Publish(bus.Event{
		Type: bus.EventTypeBackgroundChanged,
		Data: map[string]any{"color": c},
	})
}
