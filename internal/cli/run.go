package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marchellcx/labscript/internal/actions"
	"github.com/marchellcx/labscript/internal/compiler"
	"github.com/marchellcx/labscript/internal/engine"
	"github.com/marchellcx/labscript/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Block    string
	Subject  string
	Group    string
	Level    int
	Globals  []string
	Trace    bool
	Tick     time.Duration
	MaxSteps int
	MaxDepth int
	Seed     int64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script block against a subject",
		Long: `Compile a script and run one of its blocks.

The run is synchronous; if it schedules delayed work the command keeps
pumping the scheduler until the queue drains or the process is
interrupted.

Examples:
  labscript run round.lab
  labscript run round.lab --block OnStart --subject p7 --group admin --level 3
  labscript run round.lab --trace --global Mode=hard`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Block, "block", "", "block to run (default is the unnamed block)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject id for the run")
	cmd.Flags().StringVar(&opts.Group, "group", "", "subject permission group")
	cmd.Flags().IntVar(&opts.Level, "level", 0, "subject permission level")
	cmd.Flags().StringArrayVar(&opts.Globals, "global", nil, "host value as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print one trace line per invocation")
	cmd.Flags().DurationVar(&opts.Tick, "tick", 50*time.Millisecond, "scheduler pump interval for delayed work")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "step quota per run, 0 for unlimited")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", engine.DefaultMaxDepth, "sub-run depth limit, 0 for unlimited")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random source seed")

	return cmd
}

func runScript(opts *RunOptions, path string, cmd *cobra.Command) error {
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

	globals := actions.NewGlobals()
	for _, kv := range opts.Globals {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			_ = formatter.Error(ErrCodeBadFlag, fmt.Sprintf("--global %q: want key=value", kv), nil)
			return NewExitError(ExitCommandError, "malformed --global flag")
		}
		globals.Set(key, value)
	}

	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	reg, err := newCatalog(globals, log, opts.Seed)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog construction failed", err)
	}

	// Unlike compile, run refuses scripts carrying any compile error:
	// half a script must not mutate live host state.
	script, cerrs := compiler.New(reg).CompileScript(string(src))
	if len(cerrs) > 0 {
		if opts.Format == "json" {
			details := make([]string, len(cerrs))
			for i, ce := range cerrs {
				details[i] = ce.Error()
			}
			_ = formatter.Error(cerrs[0].Code, cerrs[0].Message, details)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %d compile error(s)\n", len(cerrs))
			for _, ce := range cerrs {
				fmt.Fprintf(formatter.Writer, "  %s\n", ce.Error())
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("script has %d compile error(s)", len(cerrs)))
	}

	ins, found := script.Block(opts.Block)
	if !found {
		msg := fmt.Sprintf("no block %q in %s (have %v)", opts.Block, path, script.Names())
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	engOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMaxSteps(opts.MaxSteps),
		engine.WithMaxDepth(opts.MaxDepth),
	}
	if opts.Trace {
		engOpts = append(engOpts, engine.WithTrace(func(ev engine.TraceEvent) {
			fmt.Fprintf(cmd.OutOrStdout(), "trace: seq=%d token=%s depth=%d index=%d action=%s flags=%s\n",
				ev.Seq, ev.Token, ev.Depth, ev.Index, ev.Action, ev.Flags)
		}))
	}
	eng := engine.New(reg, engOpts...)

	subject := engine.Subject{ID: opts.Subject, Group: opts.Group, Level: opts.Level}
	ok, vars := eng.RunSnapshot(ins, subject)

	if pending := eng.Scheduler().Pending(); pending > 0 {
		formatter.VerboseLog("pumping scheduler: %d task(s) pending", pending)
		if derr := drainScheduler(cmd, eng.Scheduler(), opts.Tick); derr != nil {
			_ = formatter.Error(ErrCodeRunFailed, fmt.Sprintf("scheduler drain interrupted: %v", derr), nil)
			return WrapExitError(ExitFailure, "run interrupted", derr)
		}
	}

	return outputRunResult(formatter, opts, ok, vars)
}

// drainScheduler pumps pending delayed work until the queue empties or
// the process receives an interrupt.
func drainScheduler(cmd *cobra.Command, sched *engine.Scheduler, tick time.Duration) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return sched.Drain(ctx, tick)
}

func outputRunResult(formatter *OutputFormatter, opts *RunOptions, ok bool, vars map[string]ir.Value) error {
	memory := map[string]any{}
	for k, v := range vars {
		memory[k] = v.String()
	}

	if formatter.Format == "json" {
		data := map[string]any{
			"ok":     ok,
			"block":  opts.Block,
			"memory": memory,
		}
		if !ok {
			resp := Response{
				Status: "error",
				Data:   data,
				Error:  &ResponseError{Code: ErrCodeRunFailed, Message: "run aborted"},
			}
			enc := json.NewEncoder(formatter.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "run failed")
		}
		return formatter.Success(data)
	}

	if len(memory) > 0 && formatter.Verbose {
		keys := make([]string, 0, len(memory))
		for k := range memory {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(formatter.Writer, "memory:")
		for _, k := range keys {
			fmt.Fprintf(formatter.Writer, "  %s = %v\n", k, memory[k])
		}
	}

	if !ok {
		fmt.Fprintln(formatter.Writer, "✗ run failed")
		return NewExitError(ExitFailure, "run failed")
	}
	fmt.Fprintln(formatter.Writer, "✓ run succeeded")
	return nil
}
