package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_CompileScript_Sections(t *testing.T) {
	c := New(testCatalog())
	src := `# setup
Noop

:OnSpawn
Bar 1; Noop

:OnDeath
Print gone
`

	script, errs := c.CompileScript(src)
	require.Empty(t, errs)
	require.Len(t, script.Blocks, 3)

	assert.Equal(t, "", script.Blocks[0].Name)
	require.Len(t, script.Blocks[0].Instructions, 1)

	assert.Equal(t, "OnSpawn", script.Blocks[1].Name)
	assert.Equal(t, 4, script.Blocks[1].Line)
	require.Len(t, script.Blocks[1].Instructions, 2)
	assert.Equal(t, "Bar", script.Blocks[1].Instructions[0].Action.ID)

	assert.Equal(t, "OnDeath", script.Blocks[2].Name)
	require.Len(t, script.Blocks[2].Instructions, 1)
}

func TestCompiler_CompileScript_NoMarkers(t *testing.T) {
	c := New(testCatalog())

	script, errs := c.CompileScript("Noop\nBar 1")
	require.Empty(t, errs)
	require.Len(t, script.Blocks, 1)
	assert.Equal(t, "", script.Blocks[0].Name)
	assert.Len(t, script.Blocks[0].Instructions, 2)
}

func TestCompiler_CompileScript_EmptyNamedBlockKept(t *testing.T) {
	c := New(testCatalog())

	script, errs := c.CompileScript(":Empty\n:Next\nNoop")
	require.Empty(t, errs)
	require.Len(t, script.Blocks, 2)
	assert.Equal(t, "Empty", script.Blocks[0].Name)
	assert.Empty(t, script.Blocks[0].Instructions)
	assert.Equal(t, "Next", script.Blocks[1].Name)
}

func TestCompiler_CompileScript_ErrorsAggregatedAcrossBlocks(t *testing.T) {
	c := New(testCatalog())

	script, errs := c.CompileScript(":A\nBogus\n:B\nBar 1 2\nNoop")
	require.Len(t, errs, 2)
	assert.Equal(t, ErrCodeUnknownAction, errs[0].Code)
	assert.Equal(t, ErrCodeOverflow, errs[1].Code)

	// Good call sites still compile.
	b, ok := script.Block("B")
	require.True(t, ok)
	require.Len(t, b, 1)
	assert.Equal(t, "Noop", b[0].Action.ID)
}

func TestScript_Lookup(t *testing.T) {
	c := New(testCatalog())
	script, _ := c.CompileScript(":X\nNoop")

	_, ok := script.Block("X")
	assert.True(t, ok)
	_, ok = script.Block("Y")
	assert.False(t, ok)
	assert.Equal(t, []string{"X"}, script.Names())
}
