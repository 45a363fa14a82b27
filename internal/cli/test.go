package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchellcx/labscript/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a whole scenario directory.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against golden transcripts",
		Long: `Run every YAML scenario in a directory and compare transcripts.

Each scenario runs on a cold engine with deterministic tokens, seeds,
and scheduler time, so its transcript is stable. Transcripts compare
byte for byte against golden files in a golden/ directory beside the
scenarios.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - command error (bad paths, unreadable files)

Examples:
  labscript test ./scenarios
  labscript test ./scenarios --filter "round-*"
  labscript test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden transcripts")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "scanning scenarios", err)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, f := range files {
		sr := runScenarioFile(f, opts, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles walks the directory for .yaml/.yml files, optionally
// filtered by a glob on the base name.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, merr := filepath.Match(filter, name)
			if merr != nil {
				return fmt.Errorf("invalid filter pattern: %w", merr)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func runScenarioFile(path string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	sc, err := harness.LoadScenario(path)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n  Load error: %v\n", filepath.Base(path), err)
		}
		return ScenarioResult{
			Name:   filepath.Base(path),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	res, err := harness.Run(sc)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n  Execution error: %v\n", sc.Name, err)
		}
		return ScenarioResult{
			Name:   sc.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	goldenPath := goldenFilePath(path)

	if opts.Update {
		if err := writeGolden(goldenPath, res.Transcript); err != nil {
			if text {
				fmt.Fprintf(w, "✗ %s\n  Golden update error: %v\n", sc.Name, err)
			}
			return ScenarioResult{
				Name:   sc.Name,
				Errors: []string{fmt.Sprintf("failed to update golden file: %v", err)},
			}
		}
		if text {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", sc.Name)
		}
		return ScenarioResult{Name: sc.Name, Pass: true}
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		// No golden transcript yet; the run verdict is all there is.
		if res.OK {
			if text {
				fmt.Fprintf(w, "✓ %s (no golden file)\n", sc.Name)
			}
			return ScenarioResult{Name: sc.Name, Pass: true}
		}
		if text {
			fmt.Fprintf(w, "✗ %s\n  run failed and no golden file pins it\n", sc.Name)
		}
		return ScenarioResult{
			Name:   sc.Name,
			Errors: []string{"run failed and no golden file pins it"},
		}
	}
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n  Golden read error: %v\n", sc.Name, err)
		}
		return ScenarioResult{
			Name:   sc.Name,
			Errors: []string{fmt.Sprintf("failed to read golden file: %v", err)},
		}
	}

	if string(golden) != res.Transcript {
		if text {
			fmt.Fprintf(w, "✗ %s\n  transcript does not match golden file (run with --update to regenerate)\n", sc.Name)
		}
		return ScenarioResult{
			Name:   sc.Name,
			Errors: []string{"transcript does not match golden file"},
		}
	}

	if text {
		fmt.Fprintf(w, "✓ %s\n", sc.Name)
	}
	return ScenarioResult{Name: sc.Name, Pass: true}
}

// goldenFilePath maps a scenario file to its golden transcript in the
// golden/ directory beside it.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path, transcript string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(transcript), 0o644); err != nil {
		return fmt.Errorf("writing golden file: %w", err)
	}
	return nil
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	var respErr *ResponseError
	if result.Failed > 0 {
		status = "error"
		respErr = &ResponseError{
			Code:    ErrCodeRunFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(Response{Status: status, Data: result, Error: respErr}); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
