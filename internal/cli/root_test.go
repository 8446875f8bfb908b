package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/testutil"
)

const smallProfile = `seed: 3
items: 4
locations: 2
days: 60
`

// cliEnv is an isolated working directory with a small profile.
type cliEnv struct {
	dir     string
	profile string
	db      string
	out     string
}

func newEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	env := &cliEnv{
		dir:     dir,
		profile: filepath.Join(dir, "small.cue"),
		db:      filepath.Join(dir, "retrace.db"),
		out:     filepath.Join(dir, "out"),
	}
	require.NoError(t, os.WriteFile(env.profile, []byte(smallProfile), 0o644))
	return env
}

// execute runs the root command with a fixed clock and run id.
func execute(t *testing.T, runID string, args ...string) (string, string, error) {
	t.Helper()
	opts := &RootOptions{
		Clock:  testutil.NewFixedClock(testutil.SampleAnalyzedAt),
		RunIDs: testutil.NewFixedRunIDGenerator(runID),
	}
	cmd := newRootCommand(opts)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// generate writes a dataset for the env under runID.
func (e *cliEnv) generate(t *testing.T, runID string, extra ...string) string {
	t.Helper()
	args := append([]string{"generate", "--profile", e.profile, "--out", e.out, "--db", e.db}, extra...)
	out, stderr, err := execute(t, runID, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func (e *cliEnv) openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(e.db)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string, data any) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "retrace", cmd.Use)
	assert.Contains(t, cmd.Long, "root-cause analysis")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"generate", "verify", "replay", "summary", "events", "runs", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestGenerateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	genCmd, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)

	for _, name := range []string{"profile", "seed", "workers", "out", "db", "postgres", "no-csv", "no-db"} {
		assert.NotNil(t, genCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "p", genCmd.Flags().Lookup("profile").Shorthand)
	assert.Equal(t, "o", genCmd.Flags().Lookup("out").Shorthand)
}

func TestEventsCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	eventsCmd, _, err := cmd.Find([]string{"events"})
	require.NoError(t, err)

	limitFlag := eventsCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "20", limitFlag.DefValue)
	assert.NotNil(t, eventsCmd.Flags().Lookup("category"))
	assert.NotNil(t, eventsCmd.Flags().Lookup("root-cause"))
}

func TestInvalidFormat(t *testing.T) {
	newEnv(t)

	_, _, err := execute(t, "run-1", "runs", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestConfigFileMissing(t *testing.T) {
	newEnv(t)

	_, _, err := execute(t, "run-1", "runs", "--config", "missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	env := newEnv(t)
	cfg := "store:\n  sqlite_path: from-config.db\noutput:\n  dir: csv-from-config\nprofile:\n  path: small.cue\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "retrace.yaml"), []byte(cfg), 0o644))

	out, stderr, err := execute(t, "run-1", "generate", "--format", "json")
	require.NoError(t, err, "stderr: %s", stderr)

	var result GenerateResult
	decodeResponse(t, out, &result)
	assert.Equal(t, int64(3), result.Seed)
	assert.Equal(t, "from-config.db", result.Database)
	assert.Equal(t, "csv-from-config", result.OutputDir)
	assert.FileExists(t, filepath.Join(env.dir, "from-config.db"))
	assert.FileExists(t, filepath.Join(env.dir, "csv-from-config", "stockout_events.csv"))
}

func TestVerboseLogsToStderr(t *testing.T) {
	env := newEnv(t)

	out, stderr, err := execute(t, "run-1", "generate", "-v", "--format", "json",
		"--profile", env.profile, "--out", env.out, "--db", env.db)
	require.NoError(t, err)

	decodeResponse(t, out, nil)
	assert.Contains(t, stderr, "generation started")
	assert.Contains(t, stderr, "writing dataset")
}
