package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`

	// Caller enables caller annotations.
	Caller bool `koanf:"caller"`

	// Service is attached to every entry as a constant field.
	Service string `koanf:"service"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "json",
		Caller:  true,
		Service: "researchd",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Level)
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format: %q", c.Format)
	}
	return nil
}

func (c *Config) zapLevel() zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
