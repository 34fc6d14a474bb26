package kernel

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors kernel.yml
type Config struct {
	TickMS      uint32 `yaml:"tick_ms"`      // 15 (by default)
	MaxPriority int    `yaml:"max_priority"` // 7 (by default)
	MaxTasks    int    `yaml:"max_tasks"`    // 16 (by default)
	EventBuffer int    `yaml:"event_buffer"` // 256 (by default)
	LogLevel    string `yaml:"log_level"`    // info (by default)
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() Config {
	return Config{
		TickMS:      15,
		MaxPriority: 7,
		MaxTasks:    16,
		EventBuffer: 256,
		LogLevel:    "info",
	}
}

// Parse overrides defaults with the YAML document in data.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse kernel config: %w", err)
	}
	return cfg.clamped(), nil
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// A missing or unreadable file yields the defaults together with the error.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read kernel config: %w", err)
	}
	return Parse(data)
}

// sanity clamps
func (c Config) clamped() Config {
	def := DefaultConfig()
	if c.TickMS == 0 {
		c.TickMS = def.TickMS
	}
	if c.MaxPriority < 1 {
		c.MaxPriority = def.MaxPriority
	}
	if c.MaxTasks < 1 {
		c.MaxTasks = def.MaxTasks
	}
	if c.EventBuffer < 1 {
		c.EventBuffer = def.EventBuffer
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return c
}

// Level maps LogLevel onto slog; unknown names fall back to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the default stderr logger for this config.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.Level()}))
}
