package avatar

import (
	"github.com/kevingtzz/BMO-project/internal/contract"
	"github.com/kevingtzz/BMO-project/internal/expression"
	"github.com/kevingtzz/BMO-project/internal/protocol"
	"github.com/kevingtzz/BMO-project/internal/speech"
)

// ReversionPolicy decides which armed reversions are allowed to fire
type ReversionPolicy string

const (
	// ReversionSuperseded drops a reversion once a newer emotion has been
	// applied, or the face has disconnected, since it was armed.
	ReversionSuperseded ReversionPolicy = "superseded"
	// ReversionLastFired lets every reversion fire; the last one wins even
	// if it clobbers a newer expression.
	ReversionLastFired ReversionPolicy = "last_fired"
)

// Result describes what one transition did, for the caller to log,
// count and schedule.
type Result struct {
	// Changed is set when the snapshot differs from before the transition
	Changed bool

	// Reversion is armed when non-nil
	Reversion *Reversion

	// Preset is the canonical preset applied by an emotion, if any
	Preset string
	// LegacyEye is set when an unknown emotion matched an eye name
	LegacyEye bool
	// Unknown is set when an emotion resolved to nothing and was ignored
	Unknown bool

	StaleChunk bool
	Mismatch   bool
	// Ignored is set for events the machine has no transition for
	Ignored bool

	Reverted   bool
	Superseded bool
}

// Machine is the face state machine. It performs no IO and is not safe for
// concurrent use; Controller serializes every call on its event loop.
type Machine struct {
	catalog *contract.Catalog
	policy  ReversionPolicy

	conn ConnectionState
	face FaceState

	stable    expression.Face
	hasStable bool

	speech       speech.Assembler
	brainVersion string

	// epoch counts applied emotions
	epoch uint64
}

// NewMachine creates a disconnected, sleeping face
func NewMachine(catalog *contract.Catalog, policy ReversionPolicy) *Machine {
	if catalog == nil {
		catalog = contract.Default()
	}
	if policy != ReversionLastFired {
		policy = ReversionSuperseded
	}
	return &Machine{
		catalog: catalog,
		policy:  policy,
		conn:    Disconnected,
		face:    FaceState{Eyes: expression.EyeSleeping, Mouth: expression.MouthSleeping},
	}
}

// Catalog returns the preset catalog in use
func (m *Machine) Catalog() *contract.Catalog {
	return m.catalog
}

// Policy returns the reversion policy in use
func (m *Machine) Policy() ReversionPolicy {
	return m.policy
}

// Snapshot copies out the observable state
func (m *Machine) Snapshot() Snapshot {
	id, pending := m.speech.Pending()
	return Snapshot{
		Connection:           m.conn,
		Face:                 m.face,
		LastStable:           m.stable,
		HasLastStable:        m.hasStable,
		Text:                 m.speech.Text(),
		PendingID:            id,
		Streaming:            pending,
		ContractVersion:      m.catalog.Version(),
		BrainContractVersion: m.brainVersion,
	}
}

// Connecting marks a dial in progress. It only moves out of disconnected.
func (m *Machine) Connecting() Result {
	before := m.Snapshot()
	if m.conn == Disconnected {
		m.conn = Connecting
	}
	return m.result(before, Result{})
}

// Connected shows the baseline face and records it as stable
func (m *Machine) Connected() Result {
	before := m.Snapshot()
	m.conn = Connected
	m.face = FaceState{Eyes: expression.Baseline.Eyes, Mouth: expression.Baseline.Mouth}
	m.remember(expression.Baseline)
	return m.result(before, Result{})
}

// Disconnected puts the face to sleep. The stable face, the displayed text,
// any pending utterance and armed reversions survive.
func (m *Machine) Disconnected() Result {
	before := m.Snapshot()
	m.conn = Disconnected
	m.face = FaceState{Eyes: expression.EyeSleeping, Mouth: expression.MouthSleeping}
	m.brainVersion = ""
	return m.result(before, Result{})
}

// ResetTransient clears the displayed text and pending utterance. Armed
// reversions are left alone.
func (m *Machine) ResetTransient() Result {
	before := m.Snapshot()
	m.speech.Reset()
	return m.result(before, Result{})
}

// Apply runs the transition for one decoded event
func (m *Machine) Apply(ev protocol.Event) Result {
	before := m.Snapshot()
	var res Result

	switch e := ev.(type) {
	case protocol.MessageStart:
		m.speech.Start(e.ID)
	case protocol.MessageChunk:
		res.StaleChunk = !m.speech.Chunk(e.ID, e.Text)
	case protocol.MessageEnd:
		m.speech.End(e.ID)
	case protocol.Message:
		m.speech.Replace(e.Text)
	case protocol.State:
		m.applyState(e.Value)
	case protocol.SpeakingEnd:
		m.face.Animating = false
		m.face.Mouth = m.stableMouth()
	case protocol.Emotion:
		res = m.applyEmotion(e)
	case protocol.ContractInfo:
		m.brainVersion = e.Version
		res.Mismatch = e.Version != m.catalog.Version()
	default:
		res.Ignored = true
	}

	return m.result(before, res)
}

// ApplyPreset resolves name like an emotion without a duration
func (m *Machine) ApplyPreset(name string) Result {
	return m.Apply(protocol.Emotion{Value: name})
}

// Revert is the body of a timed reversion armed at epoch. Under the
// superseded policy it does nothing once a newer emotion has been applied.
// Disconnects and transient resets do not cancel it.
func (m *Machine) Revert(epoch uint64) Result {
	before := m.Snapshot()
	if m.policy == ReversionSuperseded && epoch != m.epoch {
		return m.result(before, Result{Superseded: true})
	}
	m.show(expression.Baseline)
	m.remember(expression.Baseline)
	return m.result(before, Result{Reverted: true})
}

func (m *Machine) applyState(value protocol.StateValue) {
	switch value {
	case protocol.StateSpeaking:
		m.face.Mouth = expression.MouthSpeaking
		m.face.Animating = true
	case protocol.StateThinking:
		m.face.Mouth = expression.MouthThinking
		m.face.Animating = false
	default:
		m.face.Mouth = m.stableMouth()
		m.face.Animating = false
	}
}

func (m *Machine) applyEmotion(e protocol.Emotion) Result {
	var res Result

	preset, ok := m.catalog.Resolve(e.Value)
	switch {
	case ok && preset.Kind == contract.KindKeepPrevious:
		if m.hasStable {
			m.show(m.stable)
		} else {
			m.show(preset.Fallback)
		}
		res.Preset = preset.Name
	case ok:
		m.show(preset.Face)
		m.remember(preset.Face)
		res.Preset = preset.Name
	case expression.Eye(e.Value).Valid():
		// Unknown to the catalog but a bare eye name: eyes only, except that
		// sleeping also closes the mouth.
		m.face.Eyes = expression.Eye(e.Value)
		if e.Value == string(expression.EyeSleeping) {
			m.face.Mouth = expression.MouthSleeping
			m.face.Animating = false
		}
		res.LegacyEye = true
	default:
		res.Unknown = true
		return res
	}

	m.epoch++
	if e.HasDuration {
		res.Reversion = &Reversion{Delay: e.Duration, Epoch: m.epoch}
	}
	return res
}

// show applies f. While speaking the mouth keeps animating; the new mouth
// takes over at speaking_end through the stable face.
func (m *Machine) show(f expression.Face) {
	m.face.Eyes = f.Eyes
	if !m.face.Animating {
		m.face.Mouth = f.Mouth
	}
}

func (m *Machine) remember(f expression.Face) {
	m.stable = f
	m.hasStable = true
}

func (m *Machine) stableMouth() expression.Mouth {
	if m.hasStable {
		return m.stable.Mouth
	}
	return expression.Baseline.Mouth
}

func (m *Machine) result(before Snapshot, res Result) Result {
	res.Changed = m.Snapshot() != before
	return res
}
