package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchellcx/labscript/internal/actions"
	"github.com/marchellcx/labscript/internal/ir"
)

// NewActionsCommand creates the actions command, which lists every
// action a script can invoke.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the built-in action catalog",
		Long: `List every registered action with its parameters.

Evaluators store a boolean into their output variable and may gate If
and WhileTrue blocks. Actions marked overflow accept surplus tokens
beyond their declared parameters.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActions(rootOpts, cmd)
		},
	}
}

func runActions(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	reg, err := newCatalog(actions.NewGlobals(), log, 1)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog construction failed", err)
	}

	specs := reg.Specs()

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"actions": specs})
	}

	for _, spec := range specs {
		fmt.Fprintln(formatter.Writer, formatActionHeader(spec))
		for _, p := range spec.Params {
			if p.Description != "" {
				fmt.Fprintf(formatter.Writer, "    %-10s %s\n", p.Name, p.Description)
			} else {
				fmt.Fprintf(formatter.Writer, "    %s\n", p.Name)
			}
		}
	}
	fmt.Fprintf(formatter.Writer, "\n%d action(s)\n", len(specs))
	return nil
}

// formatActionHeader renders one catalog line: id, parameter names, and
// the evaluator/overflow markers.
func formatActionHeader(spec ir.ActionSpec) string {
	var b strings.Builder
	b.WriteString(spec.ID)
	if len(spec.Params) > 0 {
		names := make([]string, len(spec.Params))
		for i, p := range spec.Params {
			names[i] = p.Name
		}
		fmt.Fprintf(&b, " <%s>", strings.Join(names, "> <"))
	}
	var marks []string
	if spec.Evaluator {
		marks = append(marks, "evaluator")
	}
	if spec.AllowOverflow {
		marks = append(marks, "overflow")
	}
	if len(marks) > 0 {
		fmt.Fprintf(&b, "  (%s)", strings.Join(marks, ", "))
	}
	return b.String()
}
