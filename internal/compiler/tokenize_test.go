package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitInvocations_Basic(t *testing.T) {
	got := SplitInvocations(`Foo "a" "b"; Bar 1`)
	assert.Equal(t, []string{`Foo "a" "b"`, `Bar 1`}, got)
}

func TestSplitInvocations_QuotedSeparator(t *testing.T) {
	got := SplitInvocations(`Print "a;b"; Noop`)
	assert.Equal(t, []string{`Print "a;b"`, `Noop`}, got)
}

func TestSplitInvocations_EscapedSeparator(t *testing.T) {
	got := SplitInvocations(`Print a\;b; Noop`)
	assert.Equal(t, []string{`Print a\;b`, `Noop`}, got)
}

func TestSplitInvocations_EmptySegments(t *testing.T) {
	got := SplitInvocations(`;;Noop; ;`)
	assert.Equal(t, []string{`Noop`}, got)
}

func TestTokenize_SpacesAndQuotes(t *testing.T) {
	toks, ok := Tokenize(`Foo "a b" c`, false)
	require.True(t, ok)
	require.Len(t, toks, 3)
	assert.Equal(t, "Foo", toks[0].Text)
	assert.False(t, toks[0].Quoted)
	assert.Equal(t, "a b", toks[1].Text)
	assert.True(t, toks[1].Quoted)
	assert.Equal(t, "c", toks[2].Text)
}

func TestTokenize_SingleQuotes(t *testing.T) {
	toks, ok := Tokenize(`GetValue 'Key With Spaces'`, false)
	require.True(t, ok)
	require.Len(t, toks, 2)
	assert.Equal(t, "Key With Spaces", toks[1].Text)
	assert.True(t, toks[1].Quoted)
}

func TestTokenize_MixedQuoteKinds(t *testing.T) {
	// A single quote inside double quotes is literal text and vice versa.
	toks, ok := Tokenize(`Print "it's" 'say "hi"'`, false)
	require.True(t, ok)
	require.Len(t, toks, 3)
	assert.Equal(t, "it's", toks[1].Text)
	assert.Equal(t, `say "hi"`, toks[2].Text)
}

func TestTokenize_Escapes(t *testing.T) {
	toks, ok := Tokenize(`Print a\ b "c\"d"`, false)
	require.True(t, ok)
	require.Len(t, toks, 3)
	assert.Equal(t, "a b", toks[1].Text)
	assert.Equal(t, `c"d`, toks[2].Text)
}

func TestTokenize_PreserveEscapesInsideQuotes(t *testing.T) {
	toks, ok := Tokenize(`Print "c\"d" e\ f`, true)
	require.True(t, ok)
	require.Len(t, toks, 3)
	// Inside quotes the sequence is kept verbatim.
	assert.Equal(t, `c\"d`, toks[1].Text)
	// Outside quotes the escape still reduces.
	assert.Equal(t, "e f", toks[2].Text)
}

func TestTokenize_EqualsMetadata(t *testing.T) {
	toks, ok := Tokenize(`SetRole Type=Scp049 "a=b" c\=d`, false)
	require.True(t, ok)
	require.Len(t, toks, 4)

	assert.Equal(t, "Type=Scp049", toks[1].Text)
	assert.Equal(t, 4, toks[1].Eq)

	// Quoted '=' does not start a named binding.
	assert.Equal(t, "a=b", toks[2].Text)
	assert.Equal(t, -1, toks[2].Eq)

	// Escaped '=' does not either.
	assert.Equal(t, "c=d", toks[3].Text)
	assert.Equal(t, -1, toks[3].Eq)
}

func TestTokenize_UnterminatedQuote(t *testing.T) {
	_, ok := Tokenize(`Print "oops`, false)
	assert.False(t, ok)
}

func TestTokenize_TrailingBackslash(t *testing.T) {
	toks, ok := Tokenize(`Print a\`, false)
	require.True(t, ok)
	require.Len(t, toks, 2)
	assert.Equal(t, `a\`, toks[1].Text)
}

func TestTokenize_EmptyQuotedToken(t *testing.T) {
	toks, ok := Tokenize(`Store ""`, false)
	require.True(t, ok)
	require.Len(t, toks, 2)
	assert.Equal(t, "", toks[1].Text)
	assert.True(t, toks[1].Quoted)
}

func TestIsIdent(t *testing.T) {
	assert.True(t, isIdent("Type"))
	assert.True(t, isIdent("_x9"))
	assert.False(t, isIdent(""))
	assert.False(t, isIdent("9x"))
	assert.False(t, isIdent("a-b"))
}
