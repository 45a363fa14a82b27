package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchellcx/labscript/internal/ir"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemoryPool().Rent()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("A", ir.Int(7))
	v, ok := m.Get("A")
	require.True(t, ok)
	assert.Equal(t, ir.Int(7), v)

	m.Set("A", nil)
	_, ok = m.Get("A")
	assert.False(t, ok, "setting nil deletes the key")
}

func TestMemory_SnapshotIsCopy(t *testing.T) {
	m := NewMemoryPool().Rent()
	m.Set("X", ir.String("one"))

	snap := m.Snapshot()
	m.Set("X", ir.String("two"))

	assert.Equal(t, ir.String("one"), snap["X"])
}

func TestMemoryPool_RentRelease(t *testing.T) {
	p := NewMemoryPool()

	m := p.Rent()
	m.Set("K", ir.Bool(true))
	assert.Equal(t, 1, p.Outstanding())

	p.Release(m)
	assert.Equal(t, 0, p.Outstanding())

	// Reused memory comes back empty.
	m2 := p.Rent()
	assert.Equal(t, 0, m2.Len())
	_, ok := m2.Get("K")
	assert.False(t, ok)
}

func TestMemoryPool_DoubleReleaseCounted(t *testing.T) {
	p := NewMemoryPool()
	m := p.Rent()

	p.Release(m)
	p.Release(m)

	assert.Equal(t, 0, p.Outstanding())
	assert.Equal(t, 1, p.DoubleReleases())
}

func TestMemoryPool_ReleaseNil(t *testing.T) {
	p := NewMemoryPool()
	p.Release(nil)
	assert.Equal(t, 0, p.Outstanding())
	assert.Equal(t, 0, p.DoubleReleases())
}
