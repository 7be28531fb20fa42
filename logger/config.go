package logger

import (
	"go.uber.org/zap/zapcore"
)

// Config selects the log encoding and minimum level. It is read from the
// [logging] table of the dhtctl config file.
type Config struct {
	// Format is "console", "json" or "auto", which means console.
	Format string        `toml:"format"`
	Level  zapcore.Level `toml:"level"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "auto",
		Level:  zapcore.InfoLevel,
	}
}
