package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchellcx/labscript/internal/actions"
	"github.com/marchellcx/labscript/internal/compiler"
	"github.com/marchellcx/labscript/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // canonical JSON listing file
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <script>",
		Short: "Compile a script and print its call sites",
		Long: `Compile a script against the built-in action catalog.

Every block compiles independently and every call site that fails to
compile is reported without stopping the rest. The listing shows each
surviving call site with its bound parameters.

Example:
  labscript compile round.lab
  labscript compile round.lab --output listing.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical JSON listing to a file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	src, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("reading script: %v", err), nil)
		return WrapExitError(ExitCommandError, "script not readable", err)
	}

	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	reg, err := newCatalog(actions.NewGlobals(), log, 1)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog construction failed", err)
	}

	script, cerrs := compiler.New(reg).CompileScript(string(src))

	sites := 0
	for _, b := range script.Blocks {
		sites += len(b.Instructions)
	}
	formatter.VerboseLog("Compiled %d block(s), %d call site(s) from %s", len(script.Blocks), sites, path)

	listing := listingData(script, cerrs)

	if opts.Output != "" {
		data, merr := ir.MarshalOrdered(listing)
		if merr != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("encoding listing: %v", merr), nil)
			return WrapExitError(ExitCommandError, "listing not encodable", merr)
		}
		if werr := os.WriteFile(opts.Output, data, 0o644); werr != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing listing: %v", werr), nil)
			return WrapExitError(ExitCommandError, "listing not writable", werr)
		}
	}

	if opts.Format == "json" {
		return outputCompileJSON(formatter, listing, cerrs)
	}
	return outputCompileText(formatter, script, cerrs, opts.Output)
}

// listingData builds the JSON shape of a compiled script: blocks with
// their surviving call sites, plus every compile error.
func listingData(script *compiler.Script, cerrs []*compiler.CompileError) map[string]any {
	blocks := make([]any, 0, len(script.Blocks))
	for _, b := range script.Blocks {
		instrs := make([]any, 0, len(b.Instructions))
		for _, in := range b.Instructions {
			instrs = append(instrs, instructionData(in))
		}
		blocks = append(blocks, map[string]any{
			"name":         b.Name,
			"line":         b.Line,
			"instructions": instrs,
		})
	}
	errs := make([]any, 0, len(cerrs))
	for _, ce := range cerrs {
		errs = append(errs, map[string]any{
			"code":       ce.Code,
			"message":    ce.Message,
			"line":       ce.Line,
			"invocation": ce.Invocation,
		})
	}
	return map[string]any{"blocks": blocks, "errors": errs}
}

func instructionData(in *ir.Instruction) map[string]any {
	args := map[string]any{}
	for i, p := range in.Action.Params {
		if a := in.Arg(i); a != nil && a.Source != "" {
			args[p.Name] = a.Source
		}
	}
	m := map[string]any{
		"line":   in.Line,
		"action": in.Action.ID,
	}
	if in.Output != "" {
		m["output"] = in.Output
	}
	if len(args) > 0 {
		m["args"] = args
	}
	if over := in.Overflow(); len(over) > 0 {
		toks := make([]any, len(over))
		for i, t := range over {
			toks[i] = t
		}
		m["overflow"] = toks
	}
	return m
}

// formatCallSite renders one call site the way the compiler bound it:
// output variable, action id, named parameters, overflow tokens.
func formatCallSite(in *ir.Instruction) string {
	var b strings.Builder
	if in.Output != "" {
		fmt.Fprintf(&b, "$%s ", in.Output)
	}
	b.WriteString(in.Action.ID)
	for i, p := range in.Action.Params {
		if a := in.Arg(i); a != nil && a.Source != "" {
			fmt.Fprintf(&b, " %s=%q", p.Name, a.Source)
		}
	}
	for _, tok := range in.Overflow() {
		fmt.Fprintf(&b, " %q", tok)
	}
	return b.String()
}

func outputCompileText(formatter *OutputFormatter, script *compiler.Script, cerrs []*compiler.CompileError, outputFile string) error {
	w := formatter.Writer

	if len(cerrs) > 0 {
		fmt.Fprintf(w, "✗ %d compile error(s)\n\n", len(cerrs))
		for _, ce := range cerrs {
			fmt.Fprintf(w, "  %s\n", ce.Error())
		}
		fmt.Fprintln(w)
	}

	sites := 0
	for _, b := range script.Blocks {
		sites += len(b.Instructions)
		if b.Name != "" {
			fmt.Fprintf(w, ":%s\n", b.Name)
		}
		for _, in := range b.Instructions {
			fmt.Fprintf(w, "  %3d  %s\n", in.Line, formatCallSite(in))
		}
	}
	if sites > 0 {
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote listing to %s\n", outputFile)
	}

	if len(cerrs) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("compilation finished with %d error(s)", len(cerrs)))
	}
	fmt.Fprintf(w, "✓ Compiled %d block(s), %d call site(s)\n", len(script.Blocks), sites)
	return nil
}

func outputCompileJSON(formatter *OutputFormatter, listing map[string]any, cerrs []*compiler.CompileError) error {
	if len(cerrs) == 0 {
		return formatter.Success(listing)
	}

	// Errors still ship the partial listing so callers can inspect what
	// survived.
	resp := Response{
		Status: "error",
		Data:   listing,
		Error: &ResponseError{
			Code:    cerrs[0].Code,
			Message: cerrs[0].Message,
		},
	}
	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("compilation finished with %d error(s)", len(cerrs)))
}
