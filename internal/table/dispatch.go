package table

import (
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/marchellcx/labscript/internal/compiler"
	"github.com/marchellcx/labscript/internal/engine"
)

// Mode selects how a positive multiplier sum combines with a group's
// base weight.
type Mode uint8

const (
	// ModeAdd adds the multiplier sum to the base weight.
	ModeAdd Mode = iota
	// ModeMultiply multiplies the base weight by the multiplier sum.
	ModeMultiply
)

// Filter accepts or rejects a group by name. A rejected group's weight
// is forced to zero for the draw.
type Filter func(name string) bool

// Dispatcher draws groups from tables and runs the winner's scripts.
type Dispatcher struct {
	eng  *engine.Engine
	comp *compiler.Compiler
	log  *slog.Logger
	rng  *rand.Rand
	mode Mode
}

// DispatchOption configures a Dispatcher.
type DispatchOption func(*Dispatcher)

// WithRand sets the random source for draws, so tests can seed it.
func WithRand(r *rand.Rand) DispatchOption {
	return func(d *Dispatcher) { d.rng = r }
}

// WithMode sets how multiplier sums apply. Defaults to ModeAdd.
func WithMode(m Mode) DispatchOption {
	return func(d *Dispatcher) { d.mode = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DispatchOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher builds a dispatcher compiling against eng's registry.
func NewDispatcher(eng *engine.Engine, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{
		eng:  eng,
		comp: compiler.New(eng.Registry()),
		log:  slog.Default(),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EffectiveWeight computes a group's draw weight for the given
// subjects: the base weight clamped to [0,100], zeroed by the filter,
// then adjusted by the multiplier sum per subject and averaged across
// subjects. A non-positive multiplier sum leaves the base unmodified.
func (d *Dispatcher) EffectiveWeight(g *Group, subjects []engine.Subject, filter Filter) float64 {
	if filter != nil && !filter(g.Name) {
		return 0
	}
	base := clamp(g.Weight, 0, 100)
	if len(subjects) == 0 {
		return base
	}
	total := 0.0
	for _, s := range subjects {
		total += d.subjectWeight(g, base, s)
	}
	return total / float64(len(subjects))
}

func (d *Dispatcher) subjectWeight(g *Group, base float64, s engine.Subject) float64 {
	sum := 0.0
	if v, ok := g.Multipliers[s.ID]; ok && s.ID != "" {
		sum += v
	}
	if v, ok := g.Multipliers[s.Group]; ok && s.Group != "" {
		sum += v
	}
	for label, v := range g.Multipliers {
		if lvl, err := strconv.Atoi(label); err == nil && lvl <= s.Level {
			sum += v
		}
	}
	if sum <= 0 {
		return base
	}
	if d.mode == ModeMultiply {
		return base * sum
	}
	return base + sum
}

// Select draws one group from the table. An all-zero candidate set
// yields no selection.
func (d *Dispatcher) Select(t *Table, subjects []engine.Subject, filter Filter) (*Group, bool) {
	weights := make([]float64, len(t.Groups))
	total := 0.0
	for i, g := range t.Groups {
		weights[i] = d.EffectiveWeight(g, subjects, filter)
		total += weights[i]
	}
	if total <= 0 {
		return nil, false
	}
	r := d.rng.Float64() * total
	for i, g := range t.Groups {
		r -= weights[i]
		if r < 0 {
			return g, true
		}
	}
	return t.Groups[len(t.Groups)-1], true
}

// SelectAndRun draws a group and runs its scripts against every
// subject, or once with no subject when the list is empty. Reports
// false when nothing was selected, the group has no scripts, a script
// fails to compile, or any run fails.
func (d *Dispatcher) SelectAndRun(t *Table, subjects []engine.Subject, filter Filter) bool {
	g, ok := d.Select(t, subjects, filter)
	if !ok {
		d.log.Debug("no group selected", "groups", len(t.Groups))
		return false
	}
	return d.RunGroup(g, subjects)
}

// RunGroup runs one group's scripts against every subject.
func (d *Dispatcher) RunGroup(g *Group, subjects []engine.Subject) bool {
	lists, err := g.instructions(d.comp)
	if err != nil {
		d.log.Error("group failed to compile", "group", g.Name, "error", err)
		return false
	}
	if len(lists) == 0 {
		d.log.Warn("selected group has no instructions", "group", g.Name)
		return false
	}
	if len(subjects) == 0 {
		subjects = []engine.Subject{{}}
	}
	ok := true
	for _, s := range subjects {
		for _, ins := range lists {
			if !d.eng.Run(ins, s) {
				ok = false
			}
		}
	}
	return ok
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
