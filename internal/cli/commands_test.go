package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/store"
)

// pinnedProfile yields one delayed order and two stockouts: ITEM_0000 runs
// out on day 19 after a late order, ITEM_0001 on day 0 with no order.
const pinnedProfile = `seed: 7
items: 2
locations: 1
days: 30
pins: {
	scenarios: {ITEM_0000: "SUPPLIER_DELAY", ITEM_0001: "NO_FAILURE"}
	safety_stock: {ITEM_0000: 60, ITEM_0001: 60}
	lead_time: {ITEM_0000: 5, ITEM_0001: 5}
	demand: {ITEM_0000: 20, ITEM_0001: 300}
	starting_stock: {ITEM_0000: WH_00: 400, ITEM_0001: WH_00: 300}
}
`

func (e *cliEnv) usePinnedProfile(t *testing.T) {
	t.Helper()
	e.profile = filepath.Join(e.dir, "pinned.cue")
	require.NoError(t, os.WriteFile(e.profile, []byte(pinnedProfile), 0o644))
}

func TestGenerate_TextOutput(t *testing.T) {
	env := newEnv(t)

	out := env.generate(t, "run-text")

	assert.Contains(t, out, "Run run-text (seed 3)")
	assert.Contains(t, out, "Fingerprint: ")
	assert.Contains(t, out, "Rows:")
	assert.Contains(t, out, "CSV files written to "+env.out)
	assert.Contains(t, out, "Stored in "+env.db)

	for _, name := range []string{"reorder_rules", "demand_forecast", "inventory_snapshot", "purchase_orders", "stockout_events"} {
		assert.FileExists(t, filepath.Join(env.out, name+".csv"))
	}
}

func TestGenerate_JSONOutput(t *testing.T) {
	env := newEnv(t)

	out := env.generate(t, "run-json", "--format", "json")

	var result GenerateResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)

	assert.Equal(t, "run-json", result.RunID)
	assert.Equal(t, int64(3), result.Seed)
	assert.Len(t, result.Fingerprint, 64)
	assert.Equal(t, []string{"csv", "sqlite"}, result.Sinks)
	assert.Equal(t, 4, result.Counts["reorder_rules"])
	assert.Equal(t, 4*60, result.Counts["demand_forecast"])
	assert.Equal(t, 4*2*60, result.Counts["inventory_snapshot"])

	counts, err := env.openStore(t).Counts(t.Context(), "run-json")
	require.NoError(t, err)
	for stream, n := range counts {
		assert.Equal(t, result.Counts[stream.Table()], n, "stream %s", stream)
	}
}

func TestGenerate_SeedOverride(t *testing.T) {
	env := newEnv(t)

	var base, overridden GenerateResult
	decodeResponse(t, env.generate(t, "run-a", "--format", "json", "--no-csv"), &base)
	decodeResponse(t, env.generate(t, "run-b", "--format", "json", "--no-csv", "--seed", "11"), &overridden)

	assert.Equal(t, int64(11), overridden.Seed)
	assert.NotEqual(t, base.Fingerprint, overridden.Fingerprint)
}

func TestGenerate_SameSeedSameFingerprint(t *testing.T) {
	env := newEnv(t)

	var a, b GenerateResult
	decodeResponse(t, env.generate(t, "run-a", "--format", "json", "--no-csv"), &a)
	decodeResponse(t, env.generate(t, "run-b", "--format", "json", "--no-csv", "--workers", "1"), &b)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestGenerate_NoSinks(t *testing.T) {
	env := newEnv(t)

	out := env.generate(t, "run-dry", "--format", "json", "--no-csv", "--no-db")

	var result GenerateResult
	decodeResponse(t, out, &result)
	assert.Empty(t, result.Sinks)
	assert.Empty(t, result.OutputDir)
	assert.Empty(t, result.Database)
	assert.NoFileExists(t, env.db)
	assert.NoDirExists(t, env.out)
}

func TestGenerate_ProfileErrors(t *testing.T) {
	env := newEnv(t)
	bad := filepath.Join(env.dir, "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte("items: -1\n"), 0o644))

	tests := []struct {
		name    string
		profile string
	}{
		{"missing", filepath.Join(env.dir, "missing.cue")},
		{"invalid", bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "run-1", "generate", "--profile", tt.profile, "--no-csv", "--no-db")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestGenerate_UnknownPinIsConfigError(t *testing.T) {
	env := newEnv(t)
	pinned := filepath.Join(env.dir, "unknown_pin.cue")
	require.NoError(t, os.WriteFile(pinned, []byte(smallProfile+"pins: lead_time: ITEM_9999: 5\n"), 0o644))

	_, _, err := execute(t, "run-1", "generate", "--profile", pinned, "--no-csv", "--no-db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "invalid profile")
}

func TestGenerate_PostgresFlagEnablesSink(t *testing.T) {
	env := newEnv(t)

	_, _, err := execute(t, "run-1", "generate", "--profile", env.profile, "--no-csv", "--no-db",
		"--postgres", "postgres://%zz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to connect to postgres")
}

func TestVerify_Profile(t *testing.T) {
	env := newEnv(t)

	out, _, err := execute(t, "run-v", "verify", "--profile", env.profile)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-v (profile)")
	assert.Contains(t, out, "properties hold")
}

func TestVerify_Stored(t *testing.T) {
	env := newEnv(t)
	env.generate(t, "run-stored")

	out, _, err := execute(t, "unused", "verify", "--stored", "--db", env.db, "--format", "json")
	require.NoError(t, err)

	var result VerifyResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "store", result.Source)
	assert.Equal(t, "run-stored", result.RunID)
	assert.Empty(t, result.Violations)
	assert.Equal(t, result.StoredFingerprint, result.Fingerprint)
	assert.Positive(t, result.Checked)
}

func TestVerify_StoredTampered(t *testing.T) {
	env := newEnv(t)
	env.generate(t, "run-tampered")

	st := env.openStore(t)
	_, err := st.DB().Exec(`UPDATE inventory_snapshot SET stock_on_hand = stock_on_hand + 1
		WHERE rowid = (SELECT MIN(rowid) FROM inventory_snapshot)`)
	require.NoError(t, err)

	out, _, err := execute(t, "unused", "verify", "--run", "run-tampered", "--db", env.db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result VerifyResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAuditFailed, resp.Error.Code)
	assert.NotEqual(t, result.StoredFingerprint, result.Fingerprint)
}

func TestVerify_UnknownRun(t *testing.T) {
	env := newEnv(t)
	env.generate(t, "run-1")

	_, _, err := execute(t, "unused", "verify", "--run", "nope", "--db", env.db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: nope")
}

func TestReplay_Deterministic(t *testing.T) {
	env := newEnv(t)
	env.usePinnedProfile(t)
	env.generate(t, "run-replay")

	out, _, err := execute(t, "unused", "replay", "--db", env.db, "--format", "json")
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "run-replay", result.RunID)
	assert.Equal(t, int64(7), result.Seed)
	assert.True(t, result.Deterministic)
	assert.True(t, result.Intact)
	assert.Equal(t, result.Recorded, result.Replayed)
	assert.Equal(t, result.Recorded, result.Stored)
}

func TestReplay_TamperedRows(t *testing.T) {
	env := newEnv(t)
	env.usePinnedProfile(t)
	env.generate(t, "run-replay")

	st := env.openStore(t)
	res, err := st.DB().Exec(`UPDATE purchase_orders SET quantity = quantity + 1 WHERE run_id = ?`, "run-replay")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	out, _, err := execute(t, "unused", "replay", "--run", "run-replay", "--db", env.db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeReplayMismatch, resp.Error.Code)
	assert.True(t, result.Deterministic)
	assert.False(t, result.Intact)
}

func TestReplay_EmptyDatabase(t *testing.T) {
	env := newEnv(t)

	_, _, err := execute(t, "unused", "replay", "--db", env.db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no runs stored")
}

func TestSummary(t *testing.T) {
	env := newEnv(t)
	env.usePinnedProfile(t)
	env.generate(t, "run-summary")

	out, _, err := execute(t, "unused", "summary", "--db", env.db, "--format", "json")
	require.NoError(t, err)

	var result SummaryResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "run-summary", result.Run.ID)
	assert.Equal(t, 2, result.Run.Items)
	assert.Equal(t, 1, result.Counts["purchase_orders"])
	assert.Equal(t, 2, result.Counts["stockout_events"])
	assert.Equal(t, map[string]int{"EXECUTION_FAILURE": 1, "DECISION_FAILURE": 1}, result.Stockouts.ByCategory)
	assert.Equal(t, map[string]int{"SUPPLIER_DELAY": 1, "UNKNOWN": 1}, result.Stockouts.ByRootCause)

	text, _, err := execute(t, "unused", "summary", "--db", env.db)
	require.NoError(t, err)
	assert.Contains(t, text, "Run run-summary (seed 7")
	assert.Contains(t, text, "SUPPLIER_DELAY")
}

func TestEvents(t *testing.T) {
	env := newEnv(t)
	env.usePinnedProfile(t)
	env.generate(t, "run-events")

	list := func(t *testing.T, args ...string) EventsResult {
		t.Helper()
		out, _, err := execute(t, "unused", append([]string{"events", "--db", env.db, "--format", "json"}, args...)...)
		require.NoError(t, err)
		var result EventsResult
		decodeResponse(t, out, &result)
		return result
	}

	t.Run("all", func(t *testing.T) {
		result := list(t)
		assert.Equal(t, "run-events", result.RunID)
		require.Len(t, result.Events, 2)
		assert.Equal(t, "ITEM_0001", result.Events[0].Item)
		assert.Equal(t, "2024-10-01 00:00:00", result.Events[0].StockoutDate)
		assert.Equal(t, "ITEM_0000", result.Events[1].Item)
		assert.Equal(t, "2024-10-20 00:00:00", result.Events[1].StockoutDate)
	})

	t.Run("category", func(t *testing.T) {
		result := list(t, "--category", "EXECUTION_FAILURE")
		require.Len(t, result.Events, 1)
		assert.Equal(t, "SUPPLIER_DELAY", result.Events[0].RootCause)
		assert.True(t, result.Events[0].ReorderTriggered)
	})

	t.Run("root cause", func(t *testing.T) {
		result := list(t, "--root-cause", "UNKNOWN")
		require.Len(t, result.Events, 1)
		assert.Equal(t, "DECISION_FAILURE", result.Events[0].Category)
	})

	t.Run("limit", func(t *testing.T) {
		assert.Len(t, list(t, "--limit", "1").Events, 1)
	})

	t.Run("no match", func(t *testing.T) {
		out, _, err := execute(t, "unused", "events", "--db", env.db, "--root-cause", "LEAD_TIME_WRONG")
		require.NoError(t, err)
		assert.Contains(t, out, "No matching stockout events.")
	})
}

func TestEvents_InvalidFlags(t *testing.T) {
	env := newEnv(t)
	env.generate(t, "run-1")

	tests := []struct {
		name string
		args []string
	}{
		{"category", []string{"--category", "BOTH"}},
		{"limit", []string{"--limit", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "unused", append([]string{"events", "--db", env.db}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRuns(t *testing.T) {
	env := newEnv(t)

	out, _, err := execute(t, "unused", "runs", "--db", env.db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs stored.")

	env.generate(t, "run-first", "--no-csv")
	env.generate(t, "run-second", "--no-csv", "--seed", "4")

	out, _, err = execute(t, "unused", "runs", "--db", env.db, "--format", "json")
	require.NoError(t, err)

	var runs []store.Run
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{"run-first", "run-second"}, ids)

	text, _, err := execute(t, "unused", "runs", "--db", env.db)
	require.NoError(t, err)
	assert.Contains(t, text, "run-first")
	assert.Contains(t, text, "4x2x60")
}

func harnessCases(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "cases"))
	require.NoError(t, err)
	return dir
}

func TestTestCommand_HarnessCases(t *testing.T) {
	cases := harnessCases(t)
	newEnv(t)

	out, _, err := execute(t, "unused", "test", cases, "--format", "json")
	require.NoError(t, err)

	var result TestResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Passed)
	assert.Zero(t, result.Failed)
	for _, cr := range result.Cases {
		assert.True(t, cr.Pass, "%s: %v", cr.Name, cr.Errors)
	}
}

func TestTestCommand_Filter(t *testing.T) {
	cases := harnessCases(t)
	newEnv(t)

	out, _, err := execute(t, "unused", "test", cases, "--filter", "supplier_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ supplier_delay")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

const failingCase = `name: wrong_day
description: "Expects the order a day early"
profile: |
  seed: 7
  items: 1
  locations: 1
  days: 30
  pins: {
    scenarios: ITEM_0000: "SUPPLIER_DELAY"
    safety_stock: ITEM_0000: 60
    lead_time: ITEM_0000: 5
    demand: ITEM_0000: 20
    starting_stock: ITEM_0000: WH_00: 400
  }
assertions:
  - type: order
    item: ITEM_0000
    location: WH_00
    expect:
      day: 10
`

func writeCase(t *testing.T, dir, name, body string) string {
	t.Helper()
	casesDir := filepath.Join(dir, "cases")
	require.NoError(t, os.MkdirAll(casesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(casesDir, name+".yaml"), []byte(body), 0o644))
	return casesDir
}

func TestTestCommand_FailingCase(t *testing.T) {
	env := newEnv(t)
	casesDir := writeCase(t, env.dir, "wrong_day", failingCase)

	out, _, err := execute(t, "unused", "test", casesDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_day")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	want, err := os.ReadFile(filepath.Join(harnessCases(t), "..", "golden", "supplier_delay.golden"))
	require.NoError(t, err)
	env := newEnv(t)
	body := strings.Replace(failingCase, "day: 10", "day: 11", 1)
	casesDir := writeCase(t, env.dir, "supplier_delay", strings.Replace(body, "name: wrong_day", "name: supplier_delay", 1))

	_, _, err = execute(t, "unused", "test", casesDir, "--update")
	require.NoError(t, err)

	golden := filepath.Join(env.dir, "golden", "supplier_delay.golden")
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	// A stale golden file fails the case.
	require.NoError(t, os.WriteFile(golden, []byte(`{}`), 0o644))
	out, _, err := execute(t, "unused", "test", casesDir)
	require.Error(t, err)
	assert.Contains(t, out, "outcome does not match golden file")
}

func TestTestCommand_Errors(t *testing.T) {
	env := newEnv(t)

	_, _, err := execute(t, "unused", "test", filepath.Join(env.dir, "nowhere"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	empty := filepath.Join(env.dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	out, _, err := execute(t, "unused", "test", empty)
	require.NoError(t, err)
	assert.Contains(t, out, "No cases found.")
}
