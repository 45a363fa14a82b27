package ir

// OverflowKey is the reserved Scratch key under which the compiler stores
// raw argument tokens beyond an action's declared parameters.
const OverflowKey = "__overflow"

// Param is one declared parameter of an action: its position, its name
// (used for Key=Value binding, matched case-insensitively), and a short
// description surfaced by listings.
type Param struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ActionSpec is the descriptor data for one registered action: identifier,
// declared parameters in declaration order, the evaluator marker (the
// action's contract is to store a boolean into its output variable), and
// whether surplus argument tokens are tolerated.
//
// ActionSpec is pure data so the compiler can bind call sites without
// seeing handlers; the native function lives with the engine registry.
type ActionSpec struct {
	ID            string  `json:"id"`
	Params        []Param `json:"params,omitempty"`
	Evaluator     bool    `json:"evaluator,omitempty"`
	AllowOverflow bool    `json:"allow_overflow,omitempty"`
}

// Param returns the declared parameter whose canonical-folded name matches
// name, if any.
func (s ActionSpec) Param(name string) (Param, bool) {
	folded := Fold(name)
	for _, p := range s.Params {
		if Fold(p.Name) == folded {
			return p, true
		}
	}
	return Param{}, false
}

// Argument is one compiled parameter slot: the raw source text and the
// lazily populated resolve cache. The cache is written exactly once, by
// the owning action's own parser on first typed read; sources beginning
// with '$' are memory references and are never cached.
type Argument struct {
	Source   string
	Cached   Value
	Resolved bool
}

// Instruction is one compiled call site. Immutable after compilation
// except for the per-argument resolve cache and Scratch, the per-call-site
// cache holding lazily derived artifacts: overflow tokens (OverflowKey),
// parsed control-flow trees, compiled inline expressions.
type Instruction struct {
	Action  ActionSpec
	Args    []*Argument
	Output  string // output variable name, "" when the call site declares none
	Scratch map[string]any
	Line    int    // 1-based source line
	Raw     string // original invocation text, for diagnostics
}

// Arg returns the argument at index i, or nil when out of range.
func (in *Instruction) Arg(i int) *Argument {
	if i < 0 || i >= len(in.Args) {
		return nil
	}
	return in.Args[i]
}

// ScratchGet reads a per-call-site cache entry.
func (in *Instruction) ScratchGet(key string) (any, bool) {
	if in.Scratch == nil {
		return nil, false
	}
	v, ok := in.Scratch[key]
	return v, ok
}

// ScratchPut writes a per-call-site cache entry, allocating the map on
// first use.
func (in *Instruction) ScratchPut(key string, v any) {
	if in.Scratch == nil {
		in.Scratch = make(map[string]any)
	}
	in.Scratch[key] = v
}

// Overflow returns the surplus raw tokens recorded by the compiler for
// call sites whose action allows overflow.
func (in *Instruction) Overflow() []string {
	v, ok := in.ScratchGet(OverflowKey)
	if !ok {
		return nil
	}
	toks, _ := v.([]string)
	return toks
}
