package harness

import (
	"context"
	"fmt"

	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/profile"
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/testutil"
)

// Run executes a case and returns the result.
//
// Each case runs in a fresh in-memory database with a fixed clock and run
// id, so results are identical across runs.
//
// Execution flow:
//  1. Parse the profile against the schema
//  2. Generate the dataset
//  3. Store it in an in-memory SQLite database
//  4. Evaluate assertions
//
// An error means the case could not run. Failed assertions are reported
// in the result.
func Run(c *Case) (*Result, error) {
	return RunContext(context.Background(), c)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, c *Case) (*Result, error) {
	ds, err := generate(ctx, c)
	if err != nil {
		return nil, err
	}

	fp, err := record.Fingerprint(ds)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	err = st.WriteDataset(ctx, ds, store.RunMeta{
		Profile:     []byte(c.Profile),
		Fingerprint: fp,
		CreatedAt:   testutil.SampleAnalyzedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	result := NewResult()
	result.RunID = ds.RunID
	result.Fingerprint = fp
	result.Dataset = ds

	actx := &AssertionContext{Ctx: ctx, Dataset: ds, Store: st}
	for _, msg := range EvaluateAssertions(c.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func generate(ctx context.Context, c *Case) (*record.Dataset, error) {
	p, err := profile.Parse([]byte(c.Profile), c.Name+".cue")
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.Name, err)
	}

	cfg, overrides, err := p.Resolve()
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.Name, err)
	}

	gen, err := engine.New(cfg,
		engine.WithClock(testutil.NewFixedClock(testutil.SampleAnalyzedAt)),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(c.RunID)),
		engine.WithOverrides(overrides),
	)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.Name, err)
	}

	ds, err := gen.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("case %s: generate: %w", c.Name, err)
	}
	return ds, nil
}
