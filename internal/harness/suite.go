package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path         string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist (resolved to: %s)", e.Path, e.ResolvedPath)
}

// FindScenarios resolves path to scenario files. A file is returned as is;
// a directory yields its *.yaml and *.yml files, sorted.
func FindScenarios(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ScenarioNotFoundError{Path: path, ResolvedPath: resolved}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{resolved}, nil
	}

	var out []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(resolved, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Scenario     string `json:"scenario,omitempty"`
	Error        string `json:"error"`
}

// RunSuite loads and runs every scenario in paths.
// Scenarios that fail to load or run count as failures; only context
// cancellation aborts the suite.
func RunSuite(ctx context.Context, paths []string) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		runResult, err := Run(scenario)
		if err != nil {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}

		if !runResult.Pass {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario assertions failed: %v", runResult.Errors))
			continue
		}

		result.Passed++
	}

	return result, nil
}

func (r *SuiteResult) fail(path, name, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{
		ScenarioPath: path,
		Scenario:     name,
		Error:        msg,
	})
}
