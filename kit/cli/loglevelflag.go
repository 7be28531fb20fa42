package cli

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// levelFlag adapts a zapcore.Level to pflag.Value. An empty string leaves
// the level unchanged so unset environment variables keep the default.
type levelFlag struct {
	p *zapcore.Level
}

func (l levelFlag) String() string {
	if l.p == nil {
		return zapcore.InfoLevel.String()
	}
	return l.p.String()
}

func (l levelFlag) Set(s string) error {
	if s == "" {
		return nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("unknown log level %q; supported levels are debug, info, warn, error", s)
	}
	*l.p = level
	return nil
}

func (levelFlag) Type() string {
	return "level"
}

// LevelVar defines a zapcore.Level flag with the given name, default and usage.
func LevelVar(fs *pflag.FlagSet, p *zapcore.Level, name string, value zapcore.Level, usage string) {
	*p = value
	fs.Var(levelFlag{p: p}, name, usage)
}
