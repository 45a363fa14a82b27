// Package cli wires the engine, compiler, table dispatcher, and harness
// into a cobra command tree. Nothing here holds state; every command
// builds a fresh registry and engine from its flags.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/marchellcx/labscript/internal/actions"
	"github.com/marchellcx/labscript/internal/engine"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the labscript command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "labscript",
		Short: "labscript - embedded action scripting",
		Long: `An embedded scripting engine for scripted game-event sequences.

Scripts are lines of action invocations compiled against a registry of
native actions, run by a mini interpreter with lazy argument binding,
control-flow blocks, and weighted table dispatch.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewActionsCommand(opts))
	cmd.AddCommand(NewTableCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newCatalog builds the full action registry every command compiles and
// runs against: core actions plus the control-flow markers.
func newCatalog(globals *actions.Globals, log *slog.Logger, seed int64) (*engine.Registry, error) {
	reg := engine.NewRegistry()
	ok := actions.RegisterCore(reg,
		actions.WithGlobals(globals),
		actions.WithLogger(log),
		actions.WithRand(rand.New(rand.NewSource(seed))),
	)
	if !ok {
		return nil, fmt.Errorf("core action registration failed")
	}
	engine.RegisterBlocks(reg)
	return reg, nil
}

// newLogger builds the slog logger commands hand to the engine and the
// core actions. Debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
