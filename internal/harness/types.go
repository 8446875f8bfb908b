package harness

import "github.com/roach88/retrace/internal/record"

// Result is the outcome of running a case.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	RunID       string `json:"run_id"`
	Fingerprint string `json:"fingerprint"`

	// Dataset is the generated dataset, for further inspection in tests.
	Dataset *record.Dataset `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
