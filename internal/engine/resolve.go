package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marchellcx/labscript/internal/ir"
)

// Scratch key prefix and fallback output name for compiled inline
// expressions.
const (
	inlineScratchPrefix = "__inline:"
	inlineOutputVar     = "__inline_out"
)

// Resolve returns the typed value of the current instruction's i-th
// argument. Plain sources are parsed once and cached on the call site;
// parse failure and the empty source both yield def, and the cached
// value is reused by every later interpretation of the same call site.
// Reading a cached value as an incompatible type is an action-authoring
// defect and aborts the run. Sources starting with "$" are memory
// references, re-evaluated on every read and never cached: the
// remainder is looked up in the run's memory, and an absent key makes
// the remainder an inline invocation whose output becomes the value.
func Resolve[T any](c *Context, i int, parse func(string) (T, bool), def T) T {
	arg := c.Current.Arg(i)
	if arg == nil {
		return def
	}
	if arg.Resolved {
		v, ok := ir.As[T](arg.Cached)
		if !ok {
			panic(&BindError{
				Action: c.actionID(),
				Index:  i,
				Want:   fmt.Sprintf("%T", def),
				Got:    kindOf(arg.Cached),
			})
		}
		return v
	}
	if strings.HasPrefix(arg.Source, "$") {
		return deref[T](c, i, arg.Source[1:])
	}
	v, ok := parse(arg.Source)
	if !ok {
		v = def
	}
	arg.Cached = ir.From(v)
	arg.Resolved = true
	return v
}

// ResolveBool resolves argument i as a bool.
func ResolveBool(c *Context, i int, def bool) bool {
	return Resolve(c, i, ParseBool, def)
}

// ResolveInt resolves argument i as an int64.
func ResolveInt(c *Context, i int, def int64) int64 {
	return Resolve(c, i, ParseInt, def)
}

// ResolveFloat resolves argument i as a float64.
func ResolveFloat(c *Context, i int, def float64) float64 {
	return Resolve(c, i, ParseFloat, def)
}

// ResolveString resolves argument i as a string.
func ResolveString(c *Context, i int, def string) string {
	return Resolve(c, i, ParseString, def)
}

// ResolveVector resolves argument i as a vector.
func ResolveVector(c *Context, i int, def ir.Vector) ir.Vector {
	return Resolve(c, i, ParseVector, def)
}

// ResolveEnum resolves argument i against a closed, case-folded set of
// labels.
func ResolveEnum(c *Context, i int, def ir.Enum, allowed ...string) ir.Enum {
	return Resolve(c, i, ParseEnum(allowed...), def)
}

// ResolveValue resolves argument i without coercion: references yield
// whatever value is stored, plain sources their text, the empty source
// def. Actions that render or compare mixed kinds use this instead of
// the typed resolvers.
func ResolveValue(c *Context, i int, def ir.Value) ir.Value {
	arg := c.Current.Arg(i)
	if arg == nil {
		return def
	}
	if arg.Resolved {
		return arg.Cached
	}
	if strings.HasPrefix(arg.Source, "$") {
		return derefValue(c, i, arg.Source[1:])
	}
	if arg.Source == "" {
		return def
	}
	arg.Cached = ir.String(arg.Source)
	arg.Resolved = true
	return arg.Cached
}

// ParseBool parses strconv booleans plus yes/no, case-folded.
func ParseBool(s string) (bool, bool) {
	switch ir.Fold(s) {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

// ParseInt parses a base-10 integer.
func ParseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// ParseFloat parses a float.
func ParseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// ParseString accepts any non-empty source verbatim.
func ParseString(s string) (string, bool) {
	return s, s != ""
}

// ParseVector parses "x,y,z", with optional surrounding parentheses and
// spaces.
func ParseVector(s string) (ir.Vector, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return ir.Vector{}, false
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ir.Vector{}, false
		}
		out[i] = f
	}
	return ir.Vector{X: out[0], Y: out[1], Z: out[2]}, true
}

// ParseEnum returns a parser accepting only the given labels,
// case-folded, yielding the label's declared spelling.
func ParseEnum(allowed ...string) func(string) (ir.Enum, bool) {
	return func(s string) (ir.Enum, bool) {
		folded := ir.Fold(s)
		for _, a := range allowed {
			if ir.Fold(a) == folded {
				return ir.Enum(a), true
			}
		}
		return "", false
	}
}

// deref resolves a $-reference as T.
func deref[T any](c *Context, argIdx int, expr string) T {
	return coerce[T](c, argIdx, derefValue(c, argIdx, expr))
}

// derefValue resolves a $-reference: memory lookup first, inline
// invocation when the key is absent.
func derefValue(c *Context, argIdx int, expr string) ir.Value {
	if v, ok := c.mem.Get(expr); ok {
		return v
	}
	ie := c.inlineExpr(argIdx, expr)
	sub := c.sub(ie.list)
	res := c.eng.exec(sub, false)
	if !res.ok {
		sub.dispose()
		c.Failf(ErrCodeSubRunFailed, "inline expression %q failed", expr)
	}
	v, ok := sub.mem.Get(ie.output)
	sub.dispose()
	if !ok {
		c.Failf(ErrCodeUnresolvedRef, "inline expression %q saved no output", expr)
	}
	return v
}

// inlineExpr compiles expr as a single invocation, once per call site,
// caching the result in the call site's scratch.
func (c *Context) inlineExpr(argIdx int, expr string) *inlineExpr {
	key := inlineScratchPrefix + strconv.Itoa(argIdx)
	if v, ok := c.Current.ScratchGet(key); ok {
		return v.(*inlineExpr)
	}
	ins, cerr := c.eng.comp.CompileInvocation(expr, c.Current.Line)
	if cerr != nil {
		c.Failf(ErrCodeUnresolvedRef, "inline expression %q: %s", expr, cerr.Message)
	}
	if ins == nil {
		c.Failf(ErrCodeUnresolvedRef, "inline expression %q is empty", expr)
	}
	if ins.Output == "" {
		ins.Output = inlineOutputVar
	}
	ie := &inlineExpr{list: []*ir.Instruction{ins}, output: ins.Output}
	c.Current.ScratchPut(key, ie)
	return ie
}

type inlineExpr struct {
	list   []*ir.Instruction
	output string
}

// coerce reads a memory value as T. Stored values keep their type;
// the only conversion applied is integer to float widening, since the
// script grammar has no float literal markers.
func coerce[T any](c *Context, argIdx int, v ir.Value) T {
	if out, ok := ir.As[T](v); ok {
		return out
	}
	var zero T
	if _, wantFloat := any(zero).(float64); wantFloat {
		if n, isInt := ir.As[int64](v); isInt {
			if out, ok := any(float64(n)).(T); ok {
				return out
			}
		}
	}
	c.Failf(ErrCodeBadParameter, "argument %d holds %v, not usable as %T", argIdx, kindOf(v), zero)
	return zero
}

func kindOf(v ir.Value) ir.Kind {
	if v == nil {
		return ir.KindOpaque
	}
	return v.Kind()
}
