// Package actions provides the built-in catalogue registered on top of
// the control-flow set: run terminators, printing, run-memory and
// host-value access, arithmetic, and the comparison evaluators blocks
// branch on.
package actions

import (
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/marchellcx/labscript/internal/engine"
	"github.com/marchellcx/labscript/internal/ir"
)

type config struct {
	globals *Globals
	log     *slog.Logger
	rng     *rand.Rand
}

// Option configures the catalogue.
type Option func(*config)

// WithGlobals sets the host value store. Defaults to a fresh one.
func WithGlobals(g *Globals) Option {
	return func(c *config) { c.globals = g }
}

// WithLogger sets the logger Print writes to.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithRand sets the random source Random draws from, so tests can seed
// it.
func WithRand(r *rand.Rand) Option {
	return func(c *config) { c.rng = r }
}

// RegisterCore installs the built-in catalogue into reg. Reports false
// if any registration was rejected.
func RegisterCore(reg *engine.Registry, opts ...Option) bool {
	cfg := &config{
		globals: NewGlobals(),
		log:     slog.Default(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ok := reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{ID: "Noop"},
		Handler:    func(c *engine.Context) engine.Flags { return engine.Success },
	})
	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{ID: "Stop"},
		Handler: func(c *engine.Context) engine.Flags {
			return engine.Success | engine.Stop | engine.Dispose
		},
	}) && ok
	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{ID: "Fail"},
		Handler:    func(c *engine.Context) engine.Flags { return engine.Fail },
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID:            "Print",
			AllowOverflow: true,
			Params:        []ir.Param{{Index: 0, Name: "Text", Description: "text to print"}},
		},
		Handler: func(c *engine.Context) engine.Flags {
			parts := make([]string, 0, 1+len(c.Current.Overflow()))
			if v := engine.ResolveValue(c, 0, nil); v != nil {
				parts = append(parts, v.String())
			}
			parts = append(parts, c.Current.Overflow()...)
			text := strings.Join(parts, " ")
			cfg.log.Info("print", "text", text, "token", c.Token())
			c.SaveOutput(text)
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID: "Set",
			Params: []ir.Param{
				{Index: 0, Name: "Name", Description: "run variable to write"},
				{Index: 1, Name: "Value"},
			},
		},
		Handler: func(c *engine.Context) engine.Flags {
			name := engine.ResolveString(c, 0, "")
			if name == "" {
				c.Failf(engine.ErrCodeBadParameter, "Name is required")
			}
			c.SetVar(name, engine.ResolveValue(c, 1, nil))
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID: "SetGlobal",
			Params: []ir.Param{
				{Index: 0, Name: "Key", Description: "host value to write"},
				{Index: 1, Name: "Value"},
			},
		},
		Handler: func(c *engine.Context) engine.Flags {
			key := engine.ResolveString(c, 0, "")
			if key == "" {
				c.Failf(engine.ErrCodeBadParameter, "Key is required")
			}
			cfg.globals.Set(key, engine.ResolveValue(c, 1, nil))
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID:     "GetValue",
			Params: []ir.Param{{Index: 0, Name: "Key", Description: "host value to read"}},
		},
		Handler: func(c *engine.Context) engine.Flags {
			v, found := cfg.globals.Get(engine.ResolveString(c, 0, ""))
			if !found {
				return engine.Fail
			}
			c.SaveOutput(v)
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID:        "IsSet",
			Evaluator: true,
			Params:    []ir.Param{{Index: 0, Name: "Name", Description: "run variable to test"}},
		},
		Handler: func(c *engine.Context) engine.Flags {
			_, found := c.Memory().Get(engine.ResolveString(c, 0, ""))
			c.SaveOutput(found)
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID:        "HasValue",
			Evaluator: true,
			Params:    []ir.Param{{Index: 0, Name: "Key", Description: "host value to test"}},
		},
		Handler: func(c *engine.Context) engine.Flags {
			_, found := cfg.globals.Get(engine.ResolveString(c, 0, ""))
			c.SaveOutput(found)
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID: "Add",
			Params: []ir.Param{
				{Index: 0, Name: "A"},
				{Index: 1, Name: "B"},
			},
		},
		Handler: func(c *engine.Context) engine.Flags {
			c.SaveOutput(engine.ResolveFloat(c, 0, 0) + engine.ResolveFloat(c, 1, 0))
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID: "Random",
			Params: []ir.Param{
				{Index: 0, Name: "Min"},
				{Index: 1, Name: "Max"},
			},
		},
		Handler: func(c *engine.Context) engine.Flags {
			lo := engine.ResolveInt(c, 0, 0)
			hi := engine.ResolveInt(c, 1, 100)
			if hi < lo {
				lo, hi = hi, lo
			}
			c.SaveOutput(lo + cfg.rng.Int63n(hi-lo+1))
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID:        "Equal",
			Evaluator: true,
			Params: []ir.Param{
				{Index: 0, Name: "A"},
				{Index: 1, Name: "B"},
			},
		},
		Handler: func(c *engine.Context) engine.Flags {
			a := engine.ResolveValue(c, 0, nil)
			b := engine.ResolveValue(c, 1, nil)
			c.SaveOutput(valuesEqual(a, b))
			return engine.Success
		},
	}) && ok

	ok = reg.Register(engine.Action{
		ActionSpec: ir.ActionSpec{
			ID:        "GreaterThan",
			Evaluator: true,
			Params: []ir.Param{
				{Index: 0, Name: "A"},
				{Index: 1, Name: "B"},
			},
		},
		Handler: func(c *engine.Context) engine.Flags {
			c.SaveOutput(engine.ResolveFloat(c, 0, 0) > engine.ResolveFloat(c, 1, 0))
			return engine.Success
		},
	}) && ok

	return ok
}

// valuesEqual compares numerically when both sides read as numbers,
// textually otherwise.
func valuesEqual(a, b ir.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a.String() == b.String()
}

func asFloat(v ir.Value) (float64, bool) {
	switch x := v.(type) {
	case ir.Int:
		return float64(x), true
	case ir.Float:
		return float64(x), true
	default:
		return engine.ParseFloat(v.String())
	}
}
