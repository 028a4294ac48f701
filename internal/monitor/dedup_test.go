package monitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupMarkIfNew(t *testing.T) {
	dd := NewDedupStore(10)

	assert.True(t, dd.MarkIfNew("a"))
	assert.False(t, dd.MarkIfNew("a"))
	assert.True(t, dd.Seen("a"))

	assert.True(t, dd.MarkIfNew("b"))
	assert.Equal(t, 2, dd.Len())
}

func TestDedupMarkIdempotent(t *testing.T) {
	dd := NewDedupStore(10)

	dd.Mark("a")
	dd.Mark("a")
	dd.Mark("a")

	assert.Equal(t, 1, dd.Len())
	assert.True(t, dd.Seen("a"))
	assert.False(t, dd.Seen("b"))
}

func TestDedupEvictsOldestAtCapacity(t *testing.T) {
	dd := NewDedupStore(3)

	dd.Mark("a")
	dd.Mark("b")
	dd.Mark("c")
	assert.Equal(t, 3, dd.Len())

	// "a" is the oldest and gets evicted.
	dd.Mark("d")
	assert.Equal(t, 3, dd.Len())
	assert.False(t, dd.Seen("a"))
	assert.True(t, dd.Seen("b"))
	assert.True(t, dd.Seen("c"))
	assert.True(t, dd.Seen("d"))

	// An evicted ID is new again.
	assert.True(t, dd.MarkIfNew("a"))
	assert.False(t, dd.Seen("b"))
}

func TestDedupClear(t *testing.T) {
	dd := NewDedupStore(5)
	dd.Mark("a")
	dd.Mark("b")

	dd.Clear()
	assert.Equal(t, 0, dd.Len())
	assert.False(t, dd.Seen("a"))
	assert.True(t, dd.MarkIfNew("a"))
}

func TestDedupLongRunEviction(t *testing.T) {
	dd := NewDedupStore(100)

	for i := 0; i < 1000; i++ {
		dd.Mark(fmt.Sprintf("id-%d", i))
	}

	assert.Equal(t, 100, dd.Len())
	for i := 900; i < 1000; i++ {
		assert.True(t, dd.Seen(fmt.Sprintf("id-%d", i)))
	}
	assert.False(t, dd.Seen("id-899"))
}
