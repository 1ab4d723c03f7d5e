package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "MARQUEE_LOG_LEVEL"
	EnvLogTimestamp = "MARQUEE_LOG_TIMESTAMP"
	EnvLogNoColor   = "MARQUEE_LOG_NOCOLOR"
	EnvLogBypass    = "MARQUEE_LOG_BYPASS"

	defaultBuffer = 1024
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config describes the process logger. Bypass writes straight to Output
// without the background writer.
type Config struct {
	App       string
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Console   bool
	Bypass    bool
	Buffer    int
	Output    io.Writer
}

var (
	configureOnce sync.Once
	facilityMu    sync.Mutex
	facility      *AsyncWriter
)

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the profile defaults once per process.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		ApplyEnvOverrides(&cfg)
		Setup(cfg)
	})
}

func DefaultConfig(profile Profile) Config {
	cfg := Config{
		App:     "marquee",
		Console: true,
		Buffer:  defaultBuffer,
		Output:  os.Stderr,
	}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
		cfg.Bypass = true
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

// Setup replaces the global logger and returns the background writer, or nil
// when cfg.Bypass is set. A previously installed writer is closed.
func Setup(cfg Config) *AsyncWriter {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}

	var sink io.Writer = cfg.Output
	var writer *AsyncWriter
	if !cfg.Bypass {
		writer = NewAsyncWriter(cfg.Output, cfg.Buffer)
		sink = writer
	}

	var out io.Writer = sink
	if cfg.Console {
		out = zerolog.ConsoleWriter{
			Out:        sink,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}

	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.App != "" {
		ctx = ctx.Str("app", cfg.App)
	}
	log.Logger = ctx.Logger()
	zerolog.SetGlobalLevel(cfg.Level)

	facilityMu.Lock()
	prev := facility
	facility = writer
	facilityMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return writer
}

// ExitAfterFlush wraps exit so queued log lines reach the sink first. The
// flush waits at most timeout, so a hung sink cannot delay exit past it.
func ExitAfterFlush(exit func(int), timeout time.Duration) func(int) {
	return func(code int) {
		if w := Facility(); w != nil {
			_ = w.CloseTimeout(timeout)
		}
		exit(code)
	}
}

// Facility returns the background writer installed by Setup, if any.
func Facility() *AsyncWriter {
	facilityMu.Lock()
	defer facilityMu.Unlock()
	return facility
}

func ApplyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
}

// ParseLevel maps a level name to a zerolog level; ok is false for unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
