package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/gossipdht/dbconn"
	"github.com/influxdata/gossipdht/logger"
	"go.uber.org/zap/zapcore"
)

// Config is the dhtctl configuration file.
//
//	[logging]
//	format = "json"
//	level = "debug"
//
//	[storage]
//	engine = "sqlite"
//	path = "/var/lib/gossipdht/gossipdht.sqlite"
type Config struct {
	Logging logger.Config `toml:"logging"`
	Storage dbconn.Config `toml:"storage"`
}

// NewConfig returns the configuration used when no file is given.
func NewConfig() Config {
	return Config{
		Logging: logger.NewConfig(),
		Storage: dbconn.DefaultConfig(),
	}
}

// LoadConfig reads the file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}

	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("reading config %s: unknown keys %v", path, undecoded)
	}
	return c, nil
}

// Override replaces the settings given on the command line or in the
// environment. Empty values keep what the file says.
func (c *Config) Override(level, format, engine, path string) error {
	if level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		c.Logging.Level = l
	}
	if format != "" {
		c.Logging.Format = format
	}
	if engine != "" {
		c.Storage.Engine = engine
	}
	if path != "" {
		c.Storage.Path = path
	}
	return nil
}
