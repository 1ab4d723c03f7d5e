package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/marquee/internal/logging"
	"github.com/danmuck/marquee/internal/protocol/frame"
	"github.com/danmuck/marquee/internal/supervise"
	"github.com/rs/zerolog"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the resolved server configuration.
type Config struct {
	ListenAddr      string
	AdminAddr       string
	AdminCORS       []string
	AdminToken      string
	DatabasePath    string
	LogLevel        zerolog.Level
	LogFile         string
	Monitor         supervise.MonitorConfig
	GracePeriod     time.Duration
	MaxPayloadBytes uint32
	ReadTimeout     time.Duration
}

// fileConfig mirrors the on-disk TOML keys.
type fileConfig struct {
	ListenAddr       string   `toml:"listen_addr"`
	AdminAddr        string   `toml:"admin_addr"`
	AdminCORSOrigins []string `toml:"admin_cors_origins"`
	AdminToken       string   `toml:"admin_token"`
	DatabasePath     string   `toml:"database_path"`
	LogLevel         string   `toml:"log_level"`
	LogFile          string   `toml:"log_file"`
	IdleSeconds      int      `toml:"idle_seconds"`
	StructureChecks  int      `toml:"structure_checks"`
	CheckErrorPolicy string   `toml:"check_error_policy"`
	GracePeriod      string   `toml:"grace_period"`
	MaxPayloadBytes  int64    `toml:"max_payload_bytes"`
	ReadTimeout      string   `toml:"read_timeout"`
}

func Default() Config {
	return Config{
		ListenAddr:   ":7070",
		AdminAddr:    ":7071",
		DatabasePath: "marquee.db",
		LogLevel:     zerolog.InfoLevel,
		Monitor: supervise.MonitorConfig{
			IdleSeconds:  supervise.MinIdleSeconds,
			OnCheckError: supervise.PolicyFailFast,
		},
		GracePeriod:     10 * time.Second,
		MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
		ReadTimeout:     5 * time.Minute,
	}
}

// Load reads path and applies every defined key on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_cors_origins") {
		cfg.AdminCORS = normalizeOrigins(raw.AdminCORSOrigins)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("database_path") {
		cfg.DatabasePath = strings.TrimSpace(raw.DatabasePath)
	}
	if meta.IsDefined("log_level") {
		level, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return Config{}, fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, raw.LogLevel)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("idle_seconds") {
		cfg.Monitor.IdleSeconds = raw.IdleSeconds
	}
	if meta.IsDefined("structure_checks") {
		cfg.Monitor.StructureChecks = raw.StructureChecks
	}
	if meta.IsDefined("check_error_policy") {
		policy, err := supervise.ParsePolicy(raw.CheckErrorPolicy)
		if err != nil {
			return Config{}, fmt.Errorf("parse check_error_policy: %w", err)
		}
		cfg.Monitor.OnCheckError = policy
	}
	if meta.IsDefined("grace_period") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.GracePeriod))
		if err != nil {
			return Config{}, fmt.Errorf("parse grace_period: %w", err)
		}
		cfg.GracePeriod = d
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return Config{}, fmt.Errorf("%w: max_payload_bytes out of range: %d", ErrInvalidConfig, raw.MaxPayloadBytes)
		}
		cfg.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("%w: grace_period must be positive, got %s", ErrInvalidConfig, c.GracePeriod)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("%w: read_timeout must not be negative", ErrInvalidConfig)
	}
	if c.MaxPayloadBytes == 0 {
		return fmt.Errorf("%w: max_payload_bytes must be positive", ErrInvalidConfig)
	}
	if _, err := supervise.ParsePolicy(string(c.Monitor.OnCheckError)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// FrameLimits returns the framing limits implied by the config.
func (c Config) FrameLimits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxPayloadBytes}
}

func (c Config) toFile() fileConfig {
	return fileConfig{
		ListenAddr:       c.ListenAddr,
		AdminAddr:        c.AdminAddr,
		AdminCORSOrigins: c.AdminCORS,
		AdminToken:       c.AdminToken,
		DatabasePath:     c.DatabasePath,
		LogLevel:         c.LogLevel.String(),
		LogFile:          c.LogFile,
		IdleSeconds:      c.Monitor.IdleSeconds,
		StructureChecks:  c.Monitor.StructureChecks,
		CheckErrorPolicy: string(c.Monitor.OnCheckError),
		GracePeriod:      c.GracePeriod.String(),
		MaxPayloadBytes:  int64(c.MaxPayloadBytes),
		ReadTimeout:      c.ReadTimeout.String(),
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
