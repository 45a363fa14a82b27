package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchellcx/labscript/internal/ir"
)

// fixedCatalog is a Catalog over a literal descriptor table.
type fixedCatalog map[string]ir.ActionSpec

func (c fixedCatalog) Describe(id string) (ir.ActionSpec, bool) {
	s, ok := c[id]
	return s, ok
}

func testCatalog() fixedCatalog {
	return fixedCatalog{
		"Noop": {ID: "Noop"},
		"Foo": {ID: "Foo", Params: []ir.Param{
			{Index: 0, Name: "A"},
			{Index: 1, Name: "B"},
		}},
		"Bar": {ID: "Bar", Params: []ir.Param{
			{Index: 0, Name: "Value"},
		}},
		"SetRole": {ID: "SetRole", Params: []ir.Param{
			{Index: 0, Name: "Type"},
		}},
		"Print": {ID: "Print", AllowOverflow: true, Params: []ir.Param{
			{Index: 0, Name: "Text"},
		}},
		"IsSet": {ID: "IsSet", Evaluator: true, Params: []ir.Param{
			{Index: 0, Name: "Name"},
		}},
	}
}

func TestCompiler_Compile_TwoCallSitesInOrder(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Foo "a" "b"; Bar 1`)
	require.Empty(t, errs)
	require.Len(t, ins, 2)

	assert.Equal(t, "Foo", ins[0].Action.ID)
	assert.Equal(t, "a", ins[0].Args[0].Source)
	assert.Equal(t, "b", ins[0].Args[1].Source)

	assert.Equal(t, "Bar", ins[1].Action.ID)
	require.Len(t, ins[1].Args, 1)
	assert.Equal(t, "1", ins[1].Args[0].Source)
}

func TestCompiler_Compile_OutputVariableShiftsPositions(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Bar $Result 1`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)

	assert.Equal(t, "Result", ins[0].Output)
	assert.Equal(t, "1", ins[0].Args[0].Source)
}

func TestCompiler_Compile_QuotedDollarStaysArgument(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Bar "$Result"`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)

	assert.Equal(t, "", ins[0].Output)
	assert.Equal(t, "$Result", ins[0].Args[0].Source)
}

func TestCompiler_Compile_LaterDollarTokenIsArgument(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Foo x $Mem`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)

	assert.Equal(t, "", ins[0].Output)
	assert.Equal(t, "x", ins[0].Args[0].Source)
	assert.Equal(t, "$Mem", ins[0].Args[1].Source)
}

func TestCompiler_Compile_NamedBinding(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Foo B=two one`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)

	assert.Equal(t, "one", ins[0].Args[0].Source)
	assert.Equal(t, "two", ins[0].Args[1].Source)
}

func TestCompiler_Compile_NamedBindingCaseInsensitive(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`SetRole type=Scp049`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)
	assert.Equal(t, "Scp049", ins[0].Args[0].Source)
}

func TestCompiler_Compile_DuplicateBindingFails(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`SetRole Type=Scp049 Scp173`)
	assert.Empty(t, ins)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeDuplicateBind, errs[0].Code)
}

func TestCompiler_Compile_DuplicateNamedBindingFails(t *testing.T) {
	c := New(testCatalog())

	_, errs := c.Compile(`Foo A=1 A=2`)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeDuplicateBind, errs[0].Code)
}

func TestCompiler_Compile_UnknownParamFails(t *testing.T) {
	c := New(testCatalog())

	_, errs := c.Compile(`SetRole Role=Scp049`)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeUnknownParam, errs[0].Code)
}

func TestCompiler_Compile_NonIdentKeyBindsPositionally(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Bar 1+1=2`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)
	assert.Equal(t, "1+1=2", ins[0].Args[0].Source)
}

func TestCompiler_Compile_UnboundParamsDefaultToEmptySource(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Foo onlyA`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)
	assert.Equal(t, "onlyA", ins[0].Args[0].Source)
	assert.Equal(t, "", ins[0].Args[1].Source)
	assert.False(t, ins[0].Args[1].Resolved)
}

func TestCompiler_Compile_OverflowAllowed(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile(`Print hello big wide world`)
	require.Empty(t, errs)
	require.Len(t, ins, 1)
	assert.Equal(t, "hello", ins[0].Args[0].Source)
	assert.Equal(t, []string{"big", "wide", "world"}, ins[0].Overflow())
}

func TestCompiler_Compile_OverflowRejected(t *testing.T) {
	c := New(testCatalog())

	_, errs := c.Compile(`Bar one two`)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeOverflow, errs[0].Code)
}

func TestCompiler_Compile_UnknownActionDoesNotAbortRest(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile("Bogus x\nBar 1\nAlsoBogus; Noop")
	require.Len(t, errs, 2)
	assert.Equal(t, ErrCodeUnknownAction, errs[0].Code)
	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, ErrCodeUnknownAction, errs[1].Code)
	assert.Equal(t, 3, errs[1].Line)

	require.Len(t, ins, 2)
	assert.Equal(t, "Bar", ins[0].Action.ID)
	assert.Equal(t, "Noop", ins[1].Action.ID)
}

func TestCompiler_Compile_CommentsAndBlanksIgnored(t *testing.T) {
	c := New(testCatalog())

	ins, errs := c.Compile("# header\n\n  \nNoop\n# trailing")
	require.Empty(t, errs)
	require.Len(t, ins, 1)
}

func TestCompiler_Compile_UnterminatedQuote(t *testing.T) {
	c := New(testCatalog())

	_, errs := c.Compile(`Bar "open`)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeUnterminated, errs[0].Code)
}

func TestCompiler_Compile_BlockMarkerInsideBody(t *testing.T) {
	c := New(testCatalog())

	_, errs := c.Compile(":Block\nNoop")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeBlockMarker, errs[0].Code)
}

func TestCompiler_Compile_Idempotent(t *testing.T) {
	c := New(testCatalog())
	src := `Foo "a" b; Bar $Out 1
Print x y z`

	first, errs1 := c.Compile(src)
	second, errs2 := c.Compile(src)
	require.Empty(t, errs1)
	require.Empty(t, errs2)
	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].Action, second[i].Action)
		assert.Equal(t, first[i].Output, second[i].Output)
		assert.Equal(t, first[i].Raw, second[i].Raw)
		require.Len(t, second[i].Args, len(first[i].Args))
		for j := range first[i].Args {
			assert.Equal(t, first[i].Args[j].Source, second[i].Args[j].Source)
		}
		assert.Equal(t, first[i].Overflow(), second[i].Overflow())
	}
}

func TestCompileError_Error(t *testing.T) {
	err := errf(ErrCodeUnknownAction, 3, "Bogus x", "unknown action %q", "Bogus")
	assert.Equal(t, `line 3: [E101] unknown action "Bogus" in "Bogus x"`, err.Error())

	ce, ok := AsCompileError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeUnknownAction, ce.Code)
}
