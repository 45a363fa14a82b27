// Package table implements weighted action tables: named bundles of
// script text drawn probabilistically, with per-subject weight
// adjustments, the way random game events pick what happens to whom.
package table

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marchellcx/labscript/internal/compiler"
	"github.com/marchellcx/labscript/internal/ir"
)

// Group is one weighted entry: a display weight, the scripts it runs
// when drawn, and multipliers keyed by subject id, permission group,
// or numeric level label. Scripts compile lazily on first dispatch and
// the compiled form is cached; a Group is immutable after that.
type Group struct {
	Name        string             `yaml:"name"`
	Weight      float64            `yaml:"weight"`
	Actions     []string           `yaml:"actions"`
	Multipliers map[string]float64 `yaml:"multipliers,omitempty"`

	compiled [][]*ir.Instruction
}

// Table is an ordered list of groups.
type Table struct {
	Groups []*Group `yaml:"groups"`
}

// Group returns the group with the given name.
func (t *Table) Group(name string) (*Group, bool) {
	for _, g := range t.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Load parses a YAML table document, validating it against the table
// schema first.
func Load(data []byte) (*Table, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, fmt.Errorf("validate table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	return &t, nil
}

// LoadFile reads and parses a YAML table file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return Load(data)
}

// instructions compiles the group's scripts on first use. Each actions
// entry compiles independently; any compile error fails the group.
func (g *Group) instructions(comp *compiler.Compiler) ([][]*ir.Instruction, error) {
	if g.compiled != nil {
		return g.compiled, nil
	}
	lists := make([][]*ir.Instruction, 0, len(g.Actions))
	for i, src := range g.Actions {
		ins, errs := comp.Compile(src)
		if len(errs) > 0 {
			return nil, fmt.Errorf("group %q action %d: %w", g.Name, i, errs[0])
		}
		lists = append(lists, ins)
	}
	g.compiled = lists
	return lists, nil
}
