package avatar

import (
	"testing"

	"github.com/kevingtzz/BMO-project/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesterWrapsAround(t *testing.T) {
	catalog := contract.Default()
	names := catalog.Names()
	tester := NewTester(catalog)

	assert.Equal(t, names[0], tester.Current())
	assert.Equal(t, names[len(names)-1], tester.Prev())
	assert.Equal(t, names[0], tester.Next())

	for i := 1; i < len(names); i++ {
		assert.Equal(t, names[i], tester.Next())
	}
	assert.Equal(t, names[0], tester.Next())
}

func TestTesterSelect(t *testing.T) {
	tester := NewTester(contract.Default())

	require.True(t, tester.Select("sleeping"))
	assert.Equal(t, "sleeping", tester.Current())
	assert.False(t, tester.Select("sleep"))
	assert.Equal(t, "sleeping", tester.Current())
}
