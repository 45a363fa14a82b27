package cli

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marchellcx/labscript/internal/actions"
	"github.com/marchellcx/labscript/internal/engine"
	"github.com/marchellcx/labscript/internal/table"
)

// TableOptions holds flags for the table command.
type TableOptions struct {
	*RootOptions
	Seed    int64
	Mode    string
	Filter  string
	Draws   int
	Stats   bool
	Subject string
	Group   string
	Level   int
}

// NewTableCommand creates the table command.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TableOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "table <table.yaml>",
		Short: "Draw from a weighted action table",
		Long: `Load a weighted group table, draw one group, and run its scripts.

With --stats the command draws repeatedly and prints the empirical
distribution instead of running anything, which is the quickest way to
sanity-check weights and multipliers against a subject.

Examples:
  labscript table events.yaml --subject p7 --group admin --level 3
  labscript table events.yaml --stats --draws 10000 --seed 42
  labscript table events.yaml --filter "round-*" --mode mul`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTable(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random source seed")
	cmd.Flags().StringVar(&opts.Mode, "mode", "add", "multiplier mode (add|mul)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only consider groups matching this glob")
	cmd.Flags().IntVar(&opts.Draws, "draws", 1000, "sample count for --stats")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print the draw distribution instead of running")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject id")
	cmd.Flags().StringVar(&opts.Group, "group", "", "subject permission group")
	cmd.Flags().IntVar(&opts.Level, "level", 0, "subject permission level")

	return cmd
}

func runTable(opts *TableOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	mode, err := parseMode(opts.Mode)
	if err != nil {
		_ = formatter.Error(ErrCodeBadFlag, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	filter, err := globFilter(opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeBadFlag, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	tbl, err := table.LoadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "table not loadable", err)
	}
	formatter.VerboseLog("loaded %d group(s) from %s", len(tbl.Groups), path)

	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	reg, err := newCatalog(actions.NewGlobals(), log, opts.Seed)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog construction failed", err)
	}
	eng := engine.New(reg, engine.WithLogger(log))

	d := table.NewDispatcher(eng,
		table.WithRand(rand.New(rand.NewSource(opts.Seed))),
		table.WithMode(mode),
		table.WithLogger(log),
	)

	var subjects []engine.Subject
	if opts.Subject != "" || opts.Group != "" || opts.Level != 0 {
		subjects = []engine.Subject{{ID: opts.Subject, Group: opts.Group, Level: opts.Level}}
	}

	if opts.Stats {
		return outputTableStats(formatter, d, tbl, subjects, filter, opts)
	}

	if !d.SelectAndRun(tbl, subjects, filter) {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeRunFailed, "no group ran to completion", nil)
		} else {
			fmt.Fprintln(formatter.Writer, "✗ no group ran to completion")
		}
		return NewExitError(ExitFailure, "table dispatch failed")
	}
	if opts.Format == "json" {
		return formatter.Success(map[string]any{"ok": true})
	}
	fmt.Fprintln(formatter.Writer, "✓ group ran to completion")
	return nil
}

func parseMode(s string) (table.Mode, error) {
	switch s {
	case "add":
		return table.ModeAdd, nil
	case "mul", "multiply":
		return table.ModeMultiply, nil
	}
	return table.ModeAdd, fmt.Errorf("invalid mode %q: want add or mul", s)
}

// globFilter turns a glob pattern into a dispatch filter. An empty
// pattern admits every group.
func globFilter(pattern string) (table.Filter, error) {
	if pattern == "" {
		return nil, nil
	}
	if _, err := filepath.Match(pattern, "probe"); err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %v", pattern, err)
	}
	return func(name string) bool {
		ok, _ := filepath.Match(pattern, name)
		return ok
	}, nil
}

func outputTableStats(formatter *OutputFormatter, d *table.Dispatcher, tbl *table.Table, subjects []engine.Subject, filter table.Filter, opts *TableOptions) error {
	counts := make(map[string]int, len(tbl.Groups))
	misses := 0
	for range opts.Draws {
		g, ok := d.Select(tbl, subjects, filter)
		if !ok {
			misses++
			continue
		}
		counts[g.Name]++
	}

	type row struct {
		Name   string  `json:"name"`
		Weight float64 `json:"weight"`
		Count  int     `json:"count"`
		Share  float64 `json:"share"`
	}
	rows := make([]row, 0, len(tbl.Groups))
	for _, g := range tbl.Groups {
		n := counts[g.Name]
		rows = append(rows, row{
			Name:   g.Name,
			Weight: d.EffectiveWeight(g, subjects, filter),
			Count:  n,
			Share:  float64(n) / float64(opts.Draws) * 100,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"draws":  opts.Draws,
			"seed":   opts.Seed,
			"groups": rows,
			"none":   misses,
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%-16s %8s %8s %7s\n", "group", "weight", "draws", "share")
	for _, r := range rows {
		fmt.Fprintf(w, "%-16s %8.1f %8d %6.1f%%\n", r.Name, r.Weight, r.Count, r.Share)
	}
	if misses > 0 {
		fmt.Fprintf(w, "%-16s %8s %8d %6.1f%%\n", "(none)", "-", misses,
			float64(misses)/float64(opts.Draws)*100)
	}
	fmt.Fprintf(w, "\n%d draw(s), seed %d\n", opts.Draws, opts.Seed)
	return nil
}
