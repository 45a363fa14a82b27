package compiler

import "strings"

// Token is one tokenized argument: the unescaped text, whether any part of
// it was quoted, and the offset of the first unquoted unescaped '=' (-1
// when none). The compiler needs the metadata because quoting and escaping
// strip special meaning: a quoted "$Name" is an argument, not an output
// variable, and a quoted '=' never starts a named binding.
type Token struct {
	Text   string
	Quoted bool
	Eq     int
}

// SplitInvocations splits one physical line into its ';'-separated
// invocations, honoring quotes and backslash escapes. Empty segments are
// dropped.
func SplitInvocations(line string) []string {
	var (
		out     []string
		start   int
		quote   rune
		escaped bool
	)
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ';':
			if seg := strings.TrimSpace(line[start:i]); seg != "" {
				out = append(out, seg)
			}
			start = i + 1
		}
	}
	if seg := strings.TrimSpace(line[start:]); seg != "" {
		out = append(out, seg)
	}
	return out
}

// Tokenize splits an invocation into tokens. Tokens are separated by
// spaces and tabs outside quotes; both '"' and '\'' quote (closing quote
// must match the opening one); '\\' escapes the following character. With
// preserveEscapes set, escape sequences inside quotes are kept verbatim
// instead of being reduced to the escaped character.
//
// Returns ok=false when a quote is left unterminated.
func Tokenize(s string, preserveEscapes bool) ([]Token, bool) {
	var (
		toks    []Token
		cur     strings.Builder
		started bool
		quoted  bool
		eq      = -1
		quote   rune
		escaped bool
	)
	emit := func() {
		if !started {
			return
		}
		toks = append(toks, Token{Text: cur.String(), Quoted: quoted, Eq: eq})
		cur.Reset()
		started = false
		quoted = false
		eq = -1
	}
	for _, r := range s {
		switch {
		case escaped:
			if preserveEscapes && quote != 0 {
				cur.WriteByte('\\')
			}
			cur.WriteRune(r)
			started = true
			escaped = false
		case r == '\\':
			escaped = true
			started = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			quoted = true
			started = true
		case r == ' ' || r == '\t':
			emit()
		case r == '=':
			if eq < 0 {
				eq = cur.Len()
			}
			cur.WriteRune(r)
			started = true
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if escaped {
		cur.WriteByte('\\')
	}
	if quote != 0 {
		return nil, false
	}
	emit()
	return toks, true
}

// isIdent reports whether s is a plain identifier: a letter or underscore
// followed by letters, digits, or underscores. Named-binding keys must be
// identifiers; anything else binds positionally so values containing '='
// pass through untouched.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
