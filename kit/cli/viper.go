// Package cli binds command line flags and environment variables to Go
// variables for cobra commands.
package cli

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Default interface{}
	Desc    string
	// Required options must be given by flag or environment.
	Required bool
	// Persistent options are inherited by subcommands.
	Persistent bool
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// Short is the one line help text.
	Short string
	// Opts are the command line/env var options to the program
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env vars.
//
// Uses the upper-case version of the program's name as a prefix
// to all environment variables.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   p.Name,
		Short: p.Short,
		Args:  cobra.NoArgs,
	}
	if p.Run != nil {
		cmd.RunE = func(_ *cobra.Command, _ []string) error {
			return p.Run()
		}
	}

	v.SetEnvPrefix(strings.ToUpper(p.Name))
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

// BindOptions adds opts to cmd and registers them with v. Values are taken
// from, in increasing precedence, the option default, the environment and
// the command line.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	var required []Opt
	for _, o := range opts {
		flags := cmd.Flags()
		if o.Persistent {
			flags = cmd.PersistentFlags()
		}

		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			flags.StringVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetString(o.Flag)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			flags.IntVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetInt(o.Flag)
		case *uint32:
			var d uint32
			if o.Default != nil {
				d = o.Default.(uint32)
			}
			flags.Uint32Var(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetUint32(o.Flag)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			flags.BoolVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			flags.DurationVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetDuration(o.Flag)
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			flags.StringSliceVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			var d zapcore.Level
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			LevelVar(flags, destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			if err := (levelFlag{p: destP}).Set(v.GetString(o.Flag)); err != nil {
				return fmt.Errorf("%s: %w", o.Flag, err)
			}
		case pflag.Value:
			if o.Default != nil {
				if err := destP.Set(cast.ToString(o.Default)); err != nil {
					return fmt.Errorf("%s: %w", o.Flag, err)
				}
			}
			flags.Var(destP, o.Flag, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			if err := destP.Set(v.GetString(o.Flag)); err != nil {
				return fmt.Errorf("%s: %w", o.Flag, err)
			}
		default:
			return fmt.Errorf("unknown destination type %T for flag %q", o.DestP, o.Flag)
		}

		if o.Required {
			required = append(required, o)
		}
	}

	if len(required) > 0 {
		prev := cmd.PreRunE
		cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
			var missing []string
			for _, o := range required {
				if reflect.ValueOf(o.DestP).Elem().IsZero() {
					missing = append(missing, fmt.Sprintf("%q", o.Flag))
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("required flag(s) %s not set", strings.Join(missing, ", "))
			}
			if prev != nil {
				return prev(cmd, args)
			}
			return nil
		}
	}
	return nil
}
