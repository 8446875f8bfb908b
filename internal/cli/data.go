package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/profile"
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/store"
)

// ProfileFlags are the dataset flags shared by generate and verify.
type ProfileFlags struct {
	Path    string
	Seed    int64
	Workers int

	seedSet bool
}

// loadProfile reads the profile named by the flag, the config, or the
// built-in default, in that order, and applies flag overrides.
func (o *RootOptions) loadProfile(flags ProfileFlags) (*profile.Profile, error) {
	path := flags.Path
	if path == "" {
		path = o.Config.ProfilePath
	}

	var (
		p   *profile.Profile
		err error
	)
	if path == "" {
		p = profile.Default()
	} else if p, err = profile.Load(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load profile", err)
	}

	if flags.seedSet {
		p.Seed = flags.Seed
	}
	switch {
	case flags.Workers > 0:
		p.Workers = flags.Workers
	case o.Config.Workers > 0:
		p.Workers = o.Config.Workers
	}
	return p, nil
}

// generate resolves p and runs the generator.
func (o *RootOptions) generate(ctx context.Context, p *profile.Profile, runIDs engine.RunIDGenerator) (*record.Dataset, error) {
	cfg, overrides, err := p.Resolve()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid profile", err)
	}

	gen, err := engine.New(cfg,
		engine.WithClock(o.clock()),
		engine.WithRunIDGenerator(runIDs),
		engine.WithLogger(o.Logger),
		engine.WithOverrides(overrides),
	)
	if engine.IsConfigError(err) {
		return nil, WrapExitError(ExitCommandError, "invalid profile", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create generator", err)
	}

	ds, err := gen.Run(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "generation failed", err)
	}
	return ds, nil
}

// databasePath returns the flag value or the configured SQLite path.
func (o *RootOptions) databasePath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.Config.Store.SQLitePath
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", path), err)
	}
	return st, nil
}

// resolveRun returns the named run, or the latest run when id is empty.
func resolveRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, id)
	}

	switch {
	case errors.Is(err, store.ErrRunNotFound) && id == "":
		return store.Run{}, NewExitError(ExitCommandError, "no runs stored; run generate first")
	case errors.Is(err, store.ErrRunNotFound):
		return store.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	case err != nil:
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

// streamCounts keys per-stream counts by table name for output.
func streamCounts(counts map[record.Stream]int) map[string]int {
	out := make(map[string]int, len(counts))
	for stream, n := range counts {
		out[stream.Table()] = n
	}
	return out
}

func datasetCounts(ds *record.Dataset) map[string]int {
	out := make(map[string]int, len(record.Streams))
	for _, stream := range record.Streams {
		out[stream.Table()] = ds.Len(stream)
	}
	return out
}
