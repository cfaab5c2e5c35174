package trainsignal_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"tidbyt.dev/trainsignal"
)

func TestLedgerInsertContains(t *testing.T) {
	l := trainsignal.NewLedger(trainsignal.LedgerCapacity)
	assert.Equal(t, 50, l.Capacity())
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Contains(""))

	l.Insert("a")
	l.Insert("b")
	assert.True(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))
	assert.False(t, l.Contains("c"))
	assert.False(t, l.Contains(""))
	assert.Equal(t, 2, l.Len())
}

func TestLedgerDefaultCapacity(t *testing.T) {
	assert.Equal(t, trainsignal.LedgerCapacity, trainsignal.NewLedger(0).Capacity())
}

// The ring forgets: once 50 other IDs have been inserted, the first
// one is overwritten.
func TestLedgerWraparound(t *testing.T) {
	l := trainsignal.NewLedger(trainsignal.LedgerCapacity)
	l.Insert("first")

	for i := 0; i < 49; i++ {
		l.Insert(fmt.Sprintf("other-%d", i))
	}
	assert.True(t, l.Contains("first"))
	assert.Equal(t, 50, l.Len())

	l.Insert("other-49")
	assert.False(t, l.Contains("first"))
	assert.True(t, l.Contains("other-0"))
	assert.True(t, l.Contains("other-49"))
	assert.Equal(t, 50, l.Len())

	// Next to go is other-0
	l.Insert("other-50")
	assert.False(t, l.Contains("other-0"))
	assert.True(t, l.Contains("other-1"))
}

func TestLedgerSmallCapacity(t *testing.T) {
	l := trainsignal.NewLedger(2)
	l.Insert("a")
	l.Insert("b")
	l.Insert("c")
	assert.False(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))
	assert.True(t, l.Contains("c"))
	assert.Equal(t, 2, l.Len())
}
