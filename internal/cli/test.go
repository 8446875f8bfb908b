package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/harness"
	"github.com/roach88/retrace/internal/record"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // case filter (glob pattern)
}

// CaseResult holds the result of a single case.
type CaseResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Cases  []CaseResult `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <cases-dir>",
		Short: "Run conformance cases",
		Long: `Run harness cases against the generator.

Each YAML case pins a small profile and asserts on the resulting orders,
stockouts and stored row counts. When a golden/<name>.golden file exists
beside <cases-dir>, the run outcome must also match it.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (invalid paths, etc.)

Examples:
  retrace test ./cases
  retrace test ./cases --filter "supplier_*"
  retrace test ./cases --update`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter cases by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, casesDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(casesDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("cases directory not found: %s", casesDir))
	}

	caseFiles, err := findCaseFiles(casesDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find cases", err)
	}

	result := TestResult{
		Cases: make([]CaseResult, 0, len(caseFiles)),
		Total: len(caseFiles),
	}
	for _, path := range caseFiles {
		cr := runCase(cmd, path, opts.Update)
		result.Cases = append(result.Cases, cr)
		if cr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	var failure *CLIError
	if result.Failed > 0 {
		failure = &CLIError{Code: CodeTestFailed, Message: fmt.Sprintf("%d case(s) failed", result.Failed)}
	}

	err = opts.formatter(cmd).Emit(result, failure, func(w io.Writer) {
		if result.Total == 0 {
			fmt.Fprintln(w, "No cases found.")
			return
		}
		for _, cr := range result.Cases {
			if cr.Pass {
				fmt.Fprintf(w, "✓ %s\n", cr.Name)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", cr.Name)
			for _, e := range cr.Errors {
				fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	})
	if err != nil {
		return err
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// findCaseFiles finds all YAML case files directly in dir, sorted by name.
func findCaseFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(entry.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// runCase loads and runs one case, then checks or updates its golden file.
func runCase(cmd *cobra.Command, path string, update bool) CaseResult {
	name := filepath.Base(path)

	c, err := harness.LoadCase(path)
	if err != nil {
		return CaseResult{Name: name, Errors: []string{fmt.Sprintf("load error: %v", err)}}
	}
	name = c.Name

	result, err := harness.RunContext(cmd.Context(), c)
	if err != nil {
		return CaseResult{Name: name, Errors: []string{fmt.Sprintf("execution error: %v", err)}}
	}

	outcome, err := record.MarshalCanonical(harness.Outcome(c.Name, result.Dataset))
	if err != nil {
		return CaseResult{Name: name, Errors: []string{fmt.Sprintf("encode outcome: %v", err)}}
	}

	goldenPath := goldenFilePath(path, c.Name)
	if update {
		if err := writeGolden(goldenPath, outcome); err != nil {
			return CaseResult{Name: name, Errors: []string{fmt.Sprintf("golden update error: %v", err)}}
		}
	} else if golden, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(golden, outcome) {
			result.AddError("outcome does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		result.AddError(fmt.Sprintf("read golden file: %v", err))
	}

	return CaseResult{Name: name, Pass: result.Pass, Errors: result.Errors}
}

// goldenFilePath returns the golden file of a case. Golden files live in
// a golden directory beside the cases directory.
func goldenFilePath(caseFile, name string) string {
	casesDir := filepath.Dir(caseFile)
	return filepath.Join(filepath.Dir(casesDir), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
