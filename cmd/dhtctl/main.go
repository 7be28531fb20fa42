// Command dhtctl inspects the gossip coordinate system and the multi-value
// tables a node keeps on disk.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/influxdata/gossipdht/dbconn"
	"github.com/influxdata/gossipdht/kit/cli"
	"github.com/influxdata/gossipdht/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	cmd, err := newRootCommand(viper.New(), os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand for one invocation.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
	engine     string
	path       string

	config   Config
	log      *zap.Logger
	registry *dbconn.Registry
}

func newRootCommand(v *viper.Viper, stdout, stderr io.Writer) (*cobra.Command, error) {
	a := &app{v: v, stdout: stdout, stderr: stderr}

	cmd, err := cli.NewCommand(v, &cli.Program{
		Name:  "dhtctl",
		Short: "Inspect DHT coordinates, regions and multi-value tables",
		Opts: []cli.Opt{
			{
				DestP:      &a.configPath,
				Flag:       "config",
				Desc:       "path to a TOML config file with [logging] and [storage] tables",
				Persistent: true,
			},
			{
				DestP:      &a.logLevel,
				Flag:       "log-level",
				Desc:       "log level: debug, info, warn or error; overrides the config file",
				Persistent: true,
			},
			{
				DestP:      &a.logFormat,
				Flag:       "log-format",
				Desc:       "log format: console, json or auto; overrides the config file",
				Persistent: true,
			},
			{
				DestP:      &a.engine,
				Flag:       "engine",
				Desc:       "storage engine: memory, bolt or sqlite; overrides the config file",
				Persistent: true,
			},
			{
				DestP:      &a.path,
				Flag:       "path",
				Desc:       "database file; overrides the config file",
				Persistent: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceUsage = true
	cmd.PersistentPreRunE = a.setup

	subs := []func(*app) (*cobra.Command, error){
		newTelescopeCommand,
		newSegmentCommand,
		newRegionsCommand,
		newKVVCommand,
	}
	for _, sub := range subs {
		c, err := sub(a)
		if err != nil {
			return nil, err
		}
		cmd.AddCommand(c)
	}
	return cmd, nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Override(a.logLevel, a.logFormat, a.engine, a.path); err != nil {
		return err
	}
	a.config = cfg

	log, err := cfg.Logging.New(a.stderr)
	if err != nil {
		return err
	}
	a.log = log.With(zap.String("command", cmd.Name()))
	a.registry = dbconn.NewRegistry(a.log)

	cmd.SetContext(logger.NewContextWithLogger(cmd.Context(), a.log))
	return nil
}
