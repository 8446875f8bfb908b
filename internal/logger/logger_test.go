package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrace/internal/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, logger.ParseLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, logger.ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel("loud"))
}

func TestNew_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "production", Level: "info", Out: &buf})

	l.Debug().Msg("hidden")
	l.Info().Str("item", "ITEM_0001").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "ITEM_0001", entry["item"])
	assert.Contains(t, entry, "time")
}

func TestNew_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "development", Level: "debug", Out: &buf})

	l.Debug().Msg("readable")
	assert.Contains(t, buf.String(), "readable")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNew_LeavesGlobalLoggerAlone(t *testing.T) {
	var global, local bytes.Buffer
	saved := log.Logger
	log.Logger = zerolog.New(&global)
	t.Cleanup(func() { log.Logger = saved })

	logger.New(logger.Config{Level: "info", Out: &local})
	log.Info().Msg("global")

	assert.Contains(t, global.String(), "global")
	assert.Empty(t, local.String())
}
