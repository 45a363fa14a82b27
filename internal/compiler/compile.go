// Package compiler turns action DSL text into flat lists of compiled call
// sites. Compilation is collect-all: a call site that fails to bind yields
// a CompileError and is dropped, and every other call site in the same
// source still compiles.
package compiler

import (
	"strings"

	"github.com/marchellcx/labscript/internal/ir"
)

// Catalog describes registered actions to the compiler. The engine's
// registry implements it; tests may supply a fixed table.
type Catalog interface {
	Describe(id string) (ir.ActionSpec, bool)
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPreserveEscapes keeps backslash escape sequences inside quoted
// tokens verbatim instead of reducing them to the escaped character.
func WithPreserveEscapes(on bool) Option {
	return func(c *Compiler) { c.preserveEscapes = on }
}

// Compiler binds DSL invocations against a catalog of action descriptors.
type Compiler struct {
	cat             Catalog
	preserveEscapes bool
}

// New creates a Compiler over the given catalog.
func New(cat Catalog, opts ...Option) *Compiler {
	c := &Compiler{cat: cat}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles a block body: one or more lines, each possibly holding
// several ';'-separated invocations. '#' lines and blank lines are
// skipped. Call sites compile independently; the returned instruction
// list holds the ones that bound, in source order.
func (c *Compiler) Compile(src string) ([]*ir.Instruction, []*CompileError) {
	var (
		ins  []*ir.Instruction
		errs []*CompileError
	)
	for i, line := range strings.Split(src, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			errs = append(errs, errf(ErrCodeBlockMarker, lineNo, trimmed,
				"block marker not allowed inside a block body"))
			continue
		}
		for _, inv := range SplitInvocations(trimmed) {
			in, err := c.CompileInvocation(inv, lineNo)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if in != nil {
				ins = append(ins, in)
			}
		}
	}
	return ins, errs
}

// CompileInvocation compiles a single invocation: identifier, optional
// leading output variable, then positional and Key=Value argument tokens.
// Returns (nil, nil) for empty input.
func (c *Compiler) CompileInvocation(raw string, line int) (*ir.Instruction, *CompileError) {
	toks, ok := Tokenize(raw, c.preserveEscapes)
	if !ok {
		return nil, errf(ErrCodeUnterminated, line, raw, "unterminated quote")
	}
	if len(toks) == 0 {
		return nil, nil
	}

	id := toks[0].Text
	spec, found := c.cat.Describe(id)
	if !found {
		return nil, errf(ErrCodeUnknownAction, line, raw, "unknown action %q", id)
	}

	var (
		args     = make([]*ir.Argument, len(spec.Params))
		bound    = make([]bool, len(spec.Params))
		overflow []string
		output   string
		pos      int
	)
	for _, tok := range toks[1:] {
		// Key=Value binds by declared name when the key is an identifier.
		if tok.Eq > 0 && isIdent(tok.Text[:tok.Eq]) {
			key := tok.Text[:tok.Eq]
			p, declared := spec.Param(key)
			if !declared {
				return nil, errf(ErrCodeUnknownParam, line, raw,
					"action %q has no parameter %q", id, key)
			}
			if bound[p.Index] {
				return nil, errf(ErrCodeDuplicateBind, line, raw,
					"parameter %q bound twice", p.Name)
			}
			args[p.Index] = &ir.Argument{Source: tok.Text[tok.Eq+1:]}
			bound[p.Index] = true
			continue
		}

		// The very first positional token may name the output variable.
		// Only an unquoted $Name counts; a quoted "$Name" stays an
		// argument and dereferences memory at run time.
		if pos == 0 && output == "" && !tok.Quoted && tok.Eq < 0 &&
			len(tok.Text) > 1 && tok.Text[0] == '$' {
			output = tok.Text[1:]
			continue
		}

		if pos >= len(spec.Params) {
			if !spec.AllowOverflow {
				return nil, errf(ErrCodeOverflow, line, raw,
					"action %q takes %d argument(s)", id, len(spec.Params))
			}
			overflow = append(overflow, tok.Text)
			continue
		}
		if bound[pos] {
			return nil, errf(ErrCodeDuplicateBind, line, raw,
				"parameter %q bound twice", spec.Params[pos].Name)
		}
		args[pos] = &ir.Argument{Source: tok.Text}
		bound[pos] = true
		pos++
	}

	// Unbound parameters resolve to the action's default.
	for i := range args {
		if args[i] == nil {
			args[i] = &ir.Argument{Source: ""}
		}
	}

	in := &ir.Instruction{
		Action: spec,
		Args:   args,
		Output: output,
		Line:   line,
		Raw:    raw,
	}
	if len(overflow) > 0 {
		in.ScratchPut(ir.OverflowKey, overflow)
	}
	return in, nil
}
