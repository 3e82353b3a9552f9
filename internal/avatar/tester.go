package avatar

import (
	"sync"

	"github.com/kevingtzz/BMO-project/internal/contract"
)

// Tester cycles through the catalog's presets for manual inspection
type Tester struct {
	names []string

	mu  sync.Mutex
	pos int
}

// NewTester starts at the first canonical preset of catalog
func NewTester(catalog *contract.Catalog) *Tester {
	return &Tester{names: catalog.Names()}
}

// Current returns the selected preset name
func (t *Tester) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.names[t.pos]
}

// Next selects the following preset, wrapping after the last one
func (t *Tester) Next() string {
	return t.step(1)
}

// Prev selects the preceding preset, wrapping before the first one
func (t *Tester) Prev() string {
	return t.step(-1)
}

// Select jumps to name, reporting false if it is not a canonical preset
func (t *Tester) Select(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, n := range t.names {
		if n == name {
			t.pos = i
			return true
		}
	}
	return false
}

func (t *Tester) step(delta int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.names)
	t.pos = ((t.pos+delta)%n + n) % n
	return t.names[t.pos]
}
