// Package speech reconstructs the displayed utterance from streamed chunks.
package speech

// Assembler holds the displayed text and the id of the utterance currently
// being streamed. It is not safe for concurrent use; the face controller
// only touches it from its event loop.
type Assembler struct {
	text    string
	id      string
	pending bool
}

// Start begins a new utterance, clearing the displayed text
func (a *Assembler) Start(id string) {
	a.id = id
	a.pending = true
	a.text = ""
}

// Chunk appends text when id matches the pending utterance. Chunks for a
// stale or unknown id are discarded and Chunk reports false.
func (a *Assembler) Chunk(id, text string) bool {
	if !a.pending || id != a.id {
		return false
	}
	a.text += text
	return true
}

// End closes the pending utterance when id matches. The accumulated text
// stays displayed.
func (a *Assembler) End(id string) bool {
	if !a.pending || id != a.id {
		return false
	}
	a.pending = false
	a.id = ""
	return true
}

// Replace drops any pending utterance and displays text as-is
func (a *Assembler) Replace(text string) {
	a.pending = false
	a.id = ""
	a.text = text
}

// Text returns the displayed text, including chunks of an unfinished stream
func (a *Assembler) Text() string {
	return a.text
}

// Pending returns the id of the utterance in flight, if any
func (a *Assembler) Pending() (string, bool) {
	return a.id, a.pending
}

// Reset clears both the displayed text and any pending utterance
func (a *Assembler) Reset() {
	*a = Assembler{}
}
