package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// MaxDuration is the longest emotion duration a frame can carry. Larger
// duration_ms values are clamped to it.
const MaxDuration = time.Duration(math.MaxInt64/int64(time.Millisecond)) * time.Millisecond

type wireMessageStart struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

type wireMessageChunk struct {
	Type  Type   `json:"type"`
	ID    string `json:"id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type wireMessageEnd struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

type wireText struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

type wireState struct {
	Type  Type       `json:"type"`
	Value StateValue `json:"value"`
}

type wireBare struct {
	Type Type `json:"type"`
}

type wireEmotion struct {
	Type       Type   `json:"type"`
	Value      string `json:"value"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

type wireContractInfo struct {
	Type    Type   `json:"type"`
	Version string `json:"version"`
}

// Decode turns one inbound frame into an Event. It never fails.
func Decode(raw []byte) Event {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return RawText{Text: string(raw)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return RawText{Text: string(raw)}
	}

	typ, ok := stringField(fields, "type")
	if !ok {
		return Unrecognized{Raw: raw, Reason: "missing type"}
	}
	bad := func(reason string) Event {
		return Unrecognized{Type: typ, Raw: raw, Reason: reason}
	}

	switch Type(typ) {
	case TypeMessageStart:
		id, ok := stringField(fields, "id")
		if !ok {
			return bad("message_start without id")
		}
		return MessageStart{ID: id}

	case TypeMessageChunk:
		id, ok := stringField(fields, "id")
		if !ok {
			return bad("message_chunk without id")
		}
		text, ok := stringField(fields, "text")
		if !ok {
			return bad("message_chunk without text")
		}
		index, _ := numberField(fields, "index")
		return MessageChunk{ID: id, Index: int(index), Text: text}

	case TypeMessageEnd:
		id, ok := stringField(fields, "id")
		if !ok {
			return bad("message_end without id")
		}
		return MessageEnd{ID: id}

	case TypeMessage:
		text, ok := scalarField(fields, "text")
		if !ok {
			return bad("message without text")
		}
		return Message{Text: text}

	case TypeState:
		value, ok := stringField(fields, "value")
		if !ok {
			return bad("state without value")
		}
		return State{Value: StateValue(value)}

	case TypeSpeakingEnd:
		return SpeakingEnd{}

	case TypeEmotion:
		value, ok := stringField(fields, "value")
		if !ok || value == "" {
			return bad("emotion without value")
		}
		ev := Emotion{Value: value}
		if ms, ok := numberField(fields, "duration_ms"); ok {
			switch {
			case ms <= 0:
				ev.Duration = 0
			case ms >= float64(MaxDuration/time.Millisecond):
				ev.Duration = MaxDuration
			default:
				ev.Duration = time.Duration(ms * float64(time.Millisecond))
			}
			ev.HasDuration = true
		}
		return ev

	case TypeContractInfo:
		version, ok := stringField(fields, "version")
		if !ok {
			return bad("contract_info without version")
		}
		return ContractInfo{Version: version}

	case TypeInput:
		text, ok := stringField(fields, "text")
		if !ok {
			return bad("input without text")
		}
		return Input{Text: text}

	default:
		return bad("unknown type")
	}
}

// Encode renders an event as a wire frame
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case MessageStart:
		return json.Marshal(wireMessageStart{Type: TypeMessageStart, ID: e.ID})
	case MessageChunk:
		return json.Marshal(wireMessageChunk{Type: TypeMessageChunk, ID: e.ID, Index: e.Index, Text: e.Text})
	case MessageEnd:
		return json.Marshal(wireMessageEnd{Type: TypeMessageEnd, ID: e.ID})
	case Message:
		return json.Marshal(wireText{Type: TypeMessage, Text: e.Text})
	case State:
		return json.Marshal(wireState{Type: TypeState, Value: e.Value})
	case SpeakingEnd:
		return json.Marshal(wireBare{Type: TypeSpeakingEnd})
	case Emotion:
		w := wireEmotion{Type: TypeEmotion, Value: e.Value}
		if e.HasDuration {
			ms := e.Duration.Milliseconds()
			w.DurationMs = &ms
		}
		return json.Marshal(w)
	case ContractInfo:
		return json.Marshal(wireContractInfo{Type: TypeContractInfo, Version: e.Version})
	case Input:
		return json.Marshal(wireText{Type: TypeInput, Text: e.Text})
	case Unrecognized:
		return e.Raw, nil
	case RawText:
		return []byte(e.Text), nil
	default:
		return nil, fmt.Errorf("encode: unsupported event %T", ev)
	}
}

// MarshalJSON renders the outbound input frame, so an Input can be handed to
// any JSON-encoding sender.
func (i Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireText{Type: TypeInput, Text: i.Text})
}

func present(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := present(fields, name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func numberField(fields map[string]json.RawMessage, name string) (float64, bool) {
	raw, ok := present(fields, name)
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// scalarField accepts strings, numbers and booleans, rendering the latter
// two the way they appear on the wire.
func scalarField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := present(fields, name)
	if !ok {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
