package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom_NativeTypes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int32", int32(7), Int(7)},
		{"int64", int64(-3), Int(-3)},
		{"float32", float32(1.5), Float(1.5)},
		{"float64", 2.25, Float(2.25)},
		{"string", "hello", String("hello")},
		{"enum passthrough", Enum("Scp049"), Enum("Scp049")},
		{"vector passthrough", Vector{1, 2, 3}, Vector{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, From(tt.in))
		})
	}
}

func TestFrom_Nil(t *testing.T) {
	assert.Nil(t, From(nil))
}

func TestFrom_OpaqueFallback(t *testing.T) {
	type handle struct{ id int }

	v := From(handle{id: 9})
	op, ok := v.(Opaque)
	require.True(t, ok)
	assert.Equal(t, handle{id: 9}, op.V)
	assert.Equal(t, KindOpaque, v.Kind())
}

func TestAs_MatchingKinds(t *testing.T) {
	b, ok := As[bool](Bool(true))
	require.True(t, ok)
	assert.True(t, b)

	n, ok := As[int64](Int(42))
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	f, ok := As[float64](Float(2.5))
	require.True(t, ok)
	assert.Equal(t, 2.5, f)

	s, ok := As[string](String("x"))
	require.True(t, ok)
	assert.Equal(t, "x", s)

	e, ok := As[Enum](Enum("ClassD"))
	require.True(t, ok)
	assert.Equal(t, Enum("ClassD"), e)

	vec, ok := As[Vector](Vector{1, 0, -1})
	require.True(t, ok)
	assert.Equal(t, Vector{1, 0, -1}, vec)
}

func TestAs_KindMismatch(t *testing.T) {
	_, ok := As[bool](String("true"))
	assert.False(t, ok, "string must not read as bool")

	_, ok = As[float64](Int(1))
	assert.False(t, ok, "int must not silently widen")

	_, ok = As[string](Enum("Scp173"))
	assert.False(t, ok, "enum labels are distinct from free text")

	_, ok = As[string](nil)
	assert.False(t, ok)
}

func TestAs_OpaquePayload(t *testing.T) {
	type session struct{ user string }

	v := From(&session{user: "op"})
	got, ok := As[*session](v)
	require.True(t, ok)
	assert.Equal(t, "op", got.user)

	_, ok = As[string](v)
	assert.False(t, ok)
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Bool(false), "false"},
		{Int(-7), "-7"},
		{Float(0.5), "0.5"},
		{String("raw"), "raw"},
		{Enum("Tutorial"), "Tutorial"},
		{Vector{1, 2.5, -3}, "(1, 2.5, -3)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "bool", KindBool.String())
	assert.Equal(t, "vector", KindVector.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
