// Package avatar manages the face's state and its transitions
package avatar

import (
	"fmt"
	"time"

	"github.com/kevingtzz/BMO-project/internal/expression"
)

// ConnectionState tracks the link to the brain as the face sees it
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// Label is the status text shown by presentation surfaces
func (s ConnectionState) Label() string {
	switch s {
	case Connected:
		return "Connected to brain"
	case Connecting:
		return "Connecting..."
	default:
		return "Disconnected"
	}
}

// FaceState is what the face currently shows
type FaceState struct {
	Eyes      expression.Eye   `json:"eyes"`
	Mouth     expression.Mouth `json:"mouth"`
	Animating bool             `json:"animating"`
}

// Face returns the eyes and mouth without the animation flag
func (f FaceState) Face() expression.Face {
	return expression.Face{Eyes: f.Eyes, Mouth: f.Mouth}
}

func (f FaceState) String() string {
	if f.Animating {
		return fmt.Sprintf("%s/%s (animating)", f.Eyes, f.Mouth)
	}
	return fmt.Sprintf("%s/%s", f.Eyes, f.Mouth)
}

// Snapshot is a consistent copy of everything a surface may render.
// Snapshots are comparable with ==.
type Snapshot struct {
	Connection ConnectionState `json:"connection"`
	Face       FaceState       `json:"face"`

	// LastStable is meaningful only when HasLastStable is set
	LastStable    expression.Face `json:"lastStable"`
	HasLastStable bool            `json:"hasLastStable"`

	Text      string `json:"text"`
	PendingID string `json:"pendingId,omitempty"`
	Streaming bool   `json:"streaming"`

	ContractVersion      string `json:"contractVersion"`
	BrainContractVersion string `json:"brainContractVersion,omitempty"`
}

// DisplayText is the speech bubble content: the text, or "..." while empty
func (s Snapshot) DisplayText() string {
	if s.Text == "" {
		return "..."
	}
	return s.Text
}

// ContractMismatch reports whether the brain announced a different contract
func (s Snapshot) ContractMismatch() bool {
	return s.BrainContractVersion != "" && s.BrainContractVersion != s.ContractVersion
}

// Reversion is a timed return to the baseline face, armed by an emotion
// with a duration. Epoch identifies the emotion that armed it.
type Reversion struct {
	Delay time.Duration
	Epoch uint64
}
