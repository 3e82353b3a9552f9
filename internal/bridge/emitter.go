// Package bridge connects the face controller to a presentation surface.
// Surfaces receive named events through an Emitter and call back into the
// bridges to drive the face.
package bridge

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kevingtzz/BMO-project/internal/avatar"
	"github.com/kevingtzz/BMO-project/internal/calibration"
	"github.com/kevingtzz/BMO-project/internal/logging"
)

// Event names emitted to surfaces
const (
	EventStateChanged = "avatar:stateChanged"
	EventPreset       = "avatar:preset"
	EventStatus       = "connection:status"
	EventDiagnostic   = "diagnostic"
	EventLogEntry     = "log:entry"
	EventBackground   = "calibration:background"
)

// Emitter delivers named events to a surface
type Emitter interface {
	Emit(event string, data any)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(event string, data any)

// Emit implements Emitter
func (f EmitterFunc) Emit(event string, data any) {
	f(event, data)
}

// LineEmitter renders every event as one line of text
type LineEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineEmitter writes event lines to w
func NewLineEmitter(w io.Writer) *LineEmitter {
	return &LineEmitter{w: w}
}

// Emit implements Emitter
func (e *LineEmitter) Emit(event string, data any) {
	line := fmt.Sprintf("[%s] %s\n", event, Render(data))
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = io.WriteString(e.w, line)
}

// Render formats event payloads for a text surface
func Render(data any) string {
	switch v := data.(type) {
	case avatar.Snapshot:
		return fmt.Sprintf("%s | %s | %s", v.Face, v.Connection.Label(), v.DisplayText())
	case logging.LogEntry:
		s := fmt.Sprintf("%s %s %s: %s", v.Timestamp, strings.ToUpper(v.Level), v.Component, v.Message)
		if v.Data != "" {
			s += " (" + v.Data + ")"
		}
		return s
	case calibration.Color:
		return fmt.Sprintf("%s rgb(%d, %d, %d)", v.Hex(), v.R, v.G, v.B)
	case map[string]any:
		return renderMap(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func renderMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
