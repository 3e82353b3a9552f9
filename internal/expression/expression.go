// Package expression defines the eye and mouth vocabularies shared by the
// preset contract and the face controller.
package expression

// Eye is a named eye expression
type Eye string

const (
	EyeNeutral    Eye = "neutral"
	EyeHappy      Eye = "happy"
	EyeSad        Eye = "sad"
	EyeSurprised  Eye = "surprised"
	EyeThinking   Eye = "thinking"
	EyeAngry      Eye = "angry"
	EyeClosed     Eye = "closed"
	EyeSleeping   Eye = "sleeping"
	EyeConcerned  Eye = "concerned"
	EyeAffection  Eye = "affection"
	EyeAlert      Eye = "alert"
	EyeError      Eye = "error"
	EyeConfused   Eye = "confused"
	EyePlayful    Eye = "playful"
	EyeExcited    Eye = "excited"
	EyeLove       Eye = "love"
	EyeSystemMode Eye = "system_mode"
)

// Mouth is a named mouth mode
type Mouth string

const (
	MouthIdle      Mouth = "idle"
	MouthSpeaking  Mouth = "speaking"
	MouthSmile     Mouth = "smile"
	MouthSurprised Mouth = "surprised"
	MouthThinking  Mouth = "thinking"
	MouthSleeping  Mouth = "sleeping"
	MouthSad       Mouth = "sad"
	MouthFlat      Mouth = "flat"
	MouthOpen      Mouth = "open"
	MouthTongue    Mouth = "tongue"
)

var eyes = []Eye{
	EyeNeutral, EyeHappy, EyeSad, EyeSurprised, EyeThinking, EyeAngry,
	EyeClosed, EyeSleeping, EyeConcerned, EyeAffection, EyeAlert, EyeError,
	EyeConfused, EyePlayful, EyeExcited, EyeLove, EyeSystemMode,
}

var mouths = []Mouth{
	MouthIdle, MouthSpeaking, MouthSmile, MouthSurprised, MouthThinking,
	MouthSleeping, MouthSad, MouthFlat, MouthOpen, MouthTongue,
}

// Eyes returns every eye expression in declaration order
func Eyes() []Eye {
	out := make([]Eye, len(eyes))
	copy(out, eyes)
	return out
}

// Mouths returns every mouth mode in declaration order
func Mouths() []Mouth {
	out := make([]Mouth, len(mouths))
	copy(out, mouths)
	return out
}

// Valid reports whether e is a member of the eye enumeration
func (e Eye) Valid() bool {
	for _, v := range eyes {
		if v == e {
			return true
		}
	}
	return false
}

// Valid reports whether m is a member of the mouth enumeration
func (m Mouth) Valid() bool {
	for _, v := range mouths {
		if v == m {
			return true
		}
	}
	return false
}

// Face is an eye/mouth pair
type Face struct {
	Eyes  Eye   `json:"eyes" yaml:"eyes"`
	Mouth Mouth `json:"mouth" yaml:"mouth"`
}

// Valid reports whether both halves are enumerated members
func (f Face) Valid() bool {
	return f.Eyes.Valid() && f.Mouth.Valid()
}

// Common faces
var (
	Baseline = Face{Eyes: EyeNeutral, Mouth: MouthIdle}
	Asleep   = Face{Eyes: EyeSleeping, Mouth: MouthSleeping}
)
