// Package protocol defines the brain <-> face wire events.
//
// Every frame is a UTF-8 text frame holding either a JSON object with a
// "type" discriminator or an opaque string. Decode never fails: frames that
// cannot be typed come back as RawText or Unrecognized.
package protocol

import (
	"time"
)

// Type is the wire discriminator
type Type string

const (
	TypeMessageStart Type = "message_start"
	TypeMessageChunk Type = "message_chunk"
	TypeMessageEnd   Type = "message_end"
	TypeMessage      Type = "message"
	TypeState        Type = "state"
	TypeSpeakingEnd  Type = "speaking_end"
	TypeEmotion      Type = "emotion"
	TypeContractInfo Type = "contract_info"
	TypeInput        Type = "input"
)

// StateValue is the value carried by a state event
type StateValue string

const (
	StateIdle      StateValue = "idle"
	StateListening StateValue = "listening"
	StateThinking  StateValue = "thinking"
	StateSpeaking  StateValue = "speaking"
)

// Event is one decoded frame. The set of implementations is closed.
type Event interface {
	// Kind returns the wire type, or "" for RawText
	Kind() Type
	event()
}

// MessageStart opens a streamed utterance
type MessageStart struct {
	ID string
}

// MessageChunk carries one piece of a streamed utterance
type MessageChunk struct {
	ID    string
	Index int
	Text  string
}

// MessageEnd closes a streamed utterance
type MessageEnd struct {
	ID string
}

// Message replaces the displayed text in one step (legacy)
type Message struct {
	Text string
}

// State drives the mouth: idle, listening, thinking or speaking. Other
// values are passed through and treated like idle.
type State struct {
	Value StateValue
}

// SpeakingEnd stops the speaking animation
type SpeakingEnd struct{}

// Emotion asks for a preset, optionally reverting after Duration
type Emotion struct {
	Value       string
	Duration    time.Duration
	HasDuration bool
}

// ContractInfo announces the sender's face contract version
type ContractInfo struct {
	Version string
}

// Input is user text sent from the face to the brain
type Input struct {
	Text string
}

// Unrecognized is a JSON object whose type is missing, unknown, or whose
// fields do not fit the declared type.
type Unrecognized struct {
	Type   string
	Raw    []byte
	Reason string
}

// RawText is a frame that was not a JSON object, forwarded unmodified
type RawText struct {
	Text string
}

func (MessageStart) Kind() Type { return TypeMessageStart }
func (MessageChunk) Kind() Type { return TypeMessageChunk }
func (MessageEnd) Kind() Type   { return TypeMessageEnd }
func (Message) Kind() Type      { return TypeMessage }
func (State) Kind() Type        { return TypeState }
func (SpeakingEnd) Kind() Type  { return TypeSpeakingEnd }
func (Emotion) Kind() Type      { return TypeEmotion }
func (ContractInfo) Kind() Type { return TypeContractInfo }
func (Input) Kind() Type        { return TypeInput }
func (u Unrecognized) Kind() Type {
	return Type(u.Type)
}
func (RawText) Kind() Type { return "" }

func (MessageStart) event() {}
func (MessageChunk) event() {}
func (MessageEnd) event()   {}
func (Message) event()      {}
func (State) event()        {}
func (SpeakingEnd) event()  {}
func (Emotion) event()      {}
func (ContractInfo) event() {}
func (Input) event()        {}
func (Unrecognized) event() {}
func (RawText) event()      {}
