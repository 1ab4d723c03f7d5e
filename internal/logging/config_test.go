package logging

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel(" WARNING ")
	require.True(t, ok)
	require.Equal(t, zerolog.WarnLevel, lvl)

	_, ok = ParseLevel("loud")
	require.False(t, ok)

	lvl, ok = ParseLevel("off")
	require.True(t, ok)
	require.Equal(t, zerolog.Disabled, lvl)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogBypass, "true")
	t.Setenv(EnvLogNoColor, "not-a-bool")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnvOverrides(&cfg)
	require.Equal(t, zerolog.ErrorLevel, cfg.Level)
	require.False(t, cfg.Timestamp)
	require.True(t, cfg.Bypass)
	require.False(t, cfg.NoColor)
}

func TestSetupInstallsFacility(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	w := Setup(Config{App: "t", Level: zerolog.InfoLevel, Output: &buf})
	require.NotNil(t, w)
	require.Same(t, w, Facility())

	log.Info().Str("k", "v").Msg("hello")
	require.NoError(t, w.Close())
	require.Contains(t, buf.String(), `"message":"hello"`)
	require.Contains(t, buf.String(), `"app":"t"`)

	require.Nil(t, Setup(Config{Bypass: true, Output: &buf}))
	require.Nil(t, Facility())
}

func TestExitAfterFlushWritesQueuedLines(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
		Setup(Config{Bypass: true, Output: io.Discard})
	})

	var buf bytes.Buffer
	Setup(Config{Level: zerolog.InfoLevel, Output: &buf})

	var code = -1
	exit := ExitAfterFlush(func(c int) { code = c }, time.Second)
	log.Warn().Msg("grace elapsed, exiting")
	exit(0)

	require.Equal(t, 0, code)
	require.Contains(t, buf.String(), "grace elapsed, exiting")
}

func TestExitAfterFlushWithoutFacility(t *testing.T) {
	var code = -1
	ExitAfterFlush(func(c int) { code = c }, time.Millisecond)(3)
	require.Equal(t, 3, code)
}
