package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
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
		Use:   "test <scenarios>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against a fresh in-memory engine, checking per-step
expectations and final state assertions.

When golden/<name>.golden exists next to a scenario, the canonical snapshot
of the run must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  hyperhistory test ./scenarios
  hyperhistory test ./scenarios --filter "passport_*"
  hyperhistory test ./scenarios --update
  hyperhistory test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	files, err := harness.FindScenarios(path)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", path))
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(file, opts.Update)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	out := newFormatter(cmd, opts.RootOptions)
	text := func(w io.Writer) { printTestText(w, result) }

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := out.Failure(result, "E_TEST_FAILED", msg, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(result, text)
}

// filterScenarios keeps files whose base name without extension matches
// pattern. An empty pattern keeps everything.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, f := range files {
		matched, err := filepath.Match(pattern, scenarioBase(f))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, f)
		}
	}
	return out, nil
}

// runScenario executes a single scenario file and checks its golden file.
func runScenario(file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	sr := ScenarioResult{Name: scenario.Name}

	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = append(sr.Errors, result.Errors...)

	snapshot, err := harness.Snapshot(scenario.Name, scenario.Batch, result)
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("snapshot failed: %v", err))
		return sr
	}

	goldenPath := goldenFilePath(file)
	switch {
	case update:
		if err := writeGolden(goldenPath, snapshot); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
			return sr
		}
		sr.Golden = "updated"

	default:
		want, err := os.ReadFile(goldenPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			sr.Golden = "missing"
		case err != nil:
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		case !bytes.Equal(want, snapshot):
			sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
		default:
			sr.Golden = "match"
		}
	}

	sr.Pass = result.Pass && len(sr.Errors) == 0
	return sr
}

func scenarioBase(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(file string) string {
	return filepath.Join(filepath.Dir(file), "golden", scenarioBase(file)+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printTestText(w io.Writer, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, sr := range result.Scenarios {
		if sr.Pass {
			suffix := ""
			if sr.Golden == "updated" {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", sr.Name, suffix)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
