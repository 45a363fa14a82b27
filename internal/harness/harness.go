// Package harness runs end-to-end script scenarios described in YAML:
// a script, starting host values, a subject, and a number of scheduler
// ticks, rendered into a deterministic text transcript for golden
// comparison.
package harness

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marchellcx/labscript/internal/actions"
	"github.com/marchellcx/labscript/internal/compiler"
	"github.com/marchellcx/labscript/internal/engine"
	"github.com/marchellcx/labscript/internal/ir"
	"github.com/marchellcx/labscript/internal/testutil"
)

// Scenario is one scripted run. Ticks pumps the scheduler by one
// second each after the run returns, so delayed loops play out.
type Scenario struct {
	Name     string         `yaml:"name"`
	Script   string         `yaml:"script"`
	Block    string         `yaml:"block,omitempty"`
	Globals  map[string]any `yaml:"globals,omitempty"`
	Subject  SubjectSpec    `yaml:"subject,omitempty"`
	Ticks    int            `yaml:"ticks,omitempty"`
	MaxSteps int            `yaml:"max_steps,omitempty"`
}

// SubjectSpec is the YAML shape of a run subject.
type SubjectSpec struct {
	ID    string `yaml:"id"`
	Group string `yaml:"group,omitempty"`
	Level int    `yaml:"level,omitempty"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if sc.Script == "" {
		return nil, fmt.Errorf("scenario %q: script is required", sc.Name)
	}
	return &sc, nil
}

// Result is a finished scenario: the run verdict and the transcript
// golden files compare against.
type Result struct {
	OK         bool
	Transcript string
}

// counterTokens issues run-001, run-002, ... so transcripts are stable.
type counterTokens struct{ n int }

func (g *counterTokens) Generate() string {
	g.n++
	return fmt.Sprintf("run-%03d", g.n)
}

// Run executes a scenario from a cold engine: fresh registry, fresh
// globals, seeded randomness, deterministic tokens. Compile errors do
// not abort the scenario; whatever compiled still runs, and the errors
// appear in the transcript.
func Run(sc *Scenario) (*Result, error) {
	rec := testutil.NewLogRecorder()
	globals := actions.NewGlobals()
	for k, v := range sc.Globals {
		globals.Set(k, v)
	}

	reg := engine.NewRegistry()
	if !actions.RegisterCore(reg,
		actions.WithGlobals(globals),
		actions.WithLogger(rec.Logger()),
		actions.WithRand(rand.New(rand.NewSource(1))),
	) {
		return nil, fmt.Errorf("scenario %q: core registration failed", sc.Name)
	}

	var events []engine.TraceEvent
	opts := []engine.Option{
		engine.WithLogger(rec.Logger()),
		engine.WithTokens(&counterTokens{}),
		engine.WithTrace(func(ev engine.TraceEvent) { events = append(events, ev) }),
	}
	if sc.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(sc.MaxSteps))
	}
	eng := engine.New(reg, opts...)

	ins, cerrs, err := compileScenario(eng, sc)
	if err != nil {
		return nil, err
	}

	subject := engine.Subject{ID: sc.Subject.ID, Group: sc.Subject.Group, Level: sc.Subject.Level}
	ok := eng.Run(ins, subject)
	for range sc.Ticks {
		eng.Scheduler().Advance(time.Second)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", sc.Name)
	for _, cerr := range cerrs {
		fmt.Fprintf(&b, "compile: %s\n", cerr.Error())
	}
	if ok {
		b.WriteString("result: ok\n")
	} else {
		b.WriteString("result: failed\n")
	}
	for _, r := range rec.Records() {
		if r.Message == "print" {
			fmt.Fprintf(&b, "print: %s\n", r.Attrs["text"])
		}
	}
	for _, ev := range events {
		fmt.Fprintf(&b, "trace: seq=%d token=%s depth=%d index=%d action=%s flags=%s\n",
			ev.Seq, ev.Token, ev.Depth, ev.Index, ev.Action, ev.Flags)
	}
	fmt.Fprintf(&b, "pool: outstanding=%d double_releases=%d\n",
		eng.Pool().Outstanding(), eng.Pool().DoubleReleases())

	return &Result{OK: ok, Transcript: b.String()}, nil
}

func compileScenario(eng *engine.Engine, sc *Scenario) ([]*ir.Instruction, []*compiler.CompileError, error) {
	comp := compiler.New(eng.Registry())
	if sc.Block == "" {
		ins, cerrs := comp.Compile(sc.Script)
		return ins, cerrs, nil
	}
	script, cerrs := comp.CompileScript(sc.Script)
	ins, found := script.Block(sc.Block)
	if !found {
		return nil, nil, fmt.Errorf("scenario %q: no block %q", sc.Name, sc.Block)
	}
	return ins, cerrs, nil
}
