package cli

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type customFlag bool

func (c customFlag) String() string {
	if c {
		return "on"
	}
	return "off"
}

func (c *customFlag) Set(s string) error {
	*c = s == "on"
	return nil
}

func (c *customFlag) Type() string {
	return "fancy-bool"
}

func ExampleNewCommand() {
	var seed string
	var power int
	var fancyBool customFlag
	cmd, err := NewCommand(viper.New(), &Program{
		Run: func() error {
			fmt.Println(seed)
			for i := 0; i < power; i++ {
				fmt.Printf("%d\n", i)
			}
			fmt.Println(fancyBool)
			return nil
		},
		Name: "myprogram",
		Opts: []Opt{
			{
				DestP:   &seed,
				Flag:    "seed",
				Default: "origin",
				Desc:    "seed of the arc",
			},
			{
				DestP:   &power,
				Flag:    "power",
				Default: 2,
				Desc:    "quantum power",
			},
			{
				DestP:   &fancyBool,
				Flag:    "fancy-bool",
				Default: "on",
				Desc:    "things that implement pflag.Value",
			},
		},
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return
	}

	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}
	// Output:
	// origin
	// 0
	// 1
	// on
}

func newTestCommand(t *testing.T, opts []Opt, run func() error) *cobra.Command {
	t.Helper()
	if run == nil {
		run = func() error { return nil }
	}
	cmd, err := NewCommand(viper.New(), &Program{
		Run:  run,
		Name: "test",
		Opts: opts,
	})
	require.NoError(t, err)
	return cmd
}

func TestNewCommand_Precedence(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		var got string
		cmd := newTestCommand(t, []Opt{{DestP: &got, Flag: "engine", Default: "memory"}}, nil)
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "memory", got)
	})

	t.Run("env overrides default", func(t *testing.T) {
		t.Setenv("TEST_ENGINE", "bolt")
		var got string
		cmd := newTestCommand(t, []Opt{{DestP: &got, Flag: "engine", Default: "memory"}}, nil)
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "bolt", got)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		t.Setenv("TEST_ENGINE", "bolt")
		var got string
		cmd := newTestCommand(t, []Opt{{DestP: &got, Flag: "engine", Default: "memory"}}, nil)
		cmd.SetArgs([]string{"--engine", "sqlite"})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "sqlite", got)
	})

	t.Run("dashes become underscores", func(t *testing.T) {
		t.Setenv("TEST_LOG_LEVEL", "debug")
		var got zapcore.Level
		cmd := newTestCommand(t, []Opt{{DestP: &got, Flag: "log-level", Default: zapcore.InfoLevel}}, nil)
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, zapcore.DebugLevel, got)
	})
}

func TestNewCommand_Types(t *testing.T) {
	var (
		s     string
		i     int
		u     uint32
		b     bool
		d     time.Duration
		ss    []string
		level zapcore.Level
		fancy customFlag
	)
	cmd := newTestCommand(t, []Opt{
		{DestP: &s, Flag: "s"},
		{DestP: &i, Flag: "i"},
		{DestP: &u, Flag: "u"},
		{DestP: &b, Flag: "b"},
		{DestP: &d, Flag: "d"},
		{DestP: &ss, Flag: "ss"},
		{DestP: &level, Flag: "level", Default: zapcore.InfoLevel},
		{DestP: &fancy, Flag: "fancy"},
	}, nil)
	cmd.SetArgs([]string{
		"--s", "str",
		"--i", "-3",
		"--u", "7",
		"--b",
		"--d", "1m30s",
		"--ss", "a,b",
		"--level", "warn",
		"--fancy", "on",
	})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "str", s)
	assert.Equal(t, -3, i)
	assert.Equal(t, uint32(7), u)
	assert.True(t, b)
	assert.Equal(t, 90*time.Second, d)
	assert.Equal(t, []string{"a", "b"}, ss)
	assert.Equal(t, zapcore.WarnLevel, level)
	assert.Equal(t, customFlag(true), fancy)
}

func TestNewCommand_BadLevel(t *testing.T) {
	var level zapcore.Level
	cmd := newTestCommand(t, []Opt{{DestP: &level, Flag: "level", Default: zapcore.InfoLevel}}, nil)
	cmd.SetArgs([]string{"--level", "loud"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	require.Error(t, cmd.Execute())
}

func TestNewCommand_UnknownType(t *testing.T) {
	var f float32
	_, err := NewCommand(viper.New(), &Program{
		Name: "test",
		Opts: []Opt{{DestP: &f, Flag: "f"}},
	})
	require.Error(t, err)
}

func TestNewCommand_Required(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		var key string
		ran := false
		cmd := newTestCommand(t, []Opt{{DestP: &key, Flag: "key", Required: true}}, func() error {
			ran = true
			return nil
		})
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		cmd.SetArgs([]string{})
		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"key"`)
		assert.False(t, ran)
	})

	t.Run("from flag", func(t *testing.T) {
		var key string
		cmd := newTestCommand(t, []Opt{{DestP: &key, Flag: "key", Required: true}}, nil)
		cmd.SetArgs([]string{"--key", "k"})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "k", key)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("TEST_KEY", "k")
		var key string
		cmd := newTestCommand(t, []Opt{{DestP: &key, Flag: "key", Required: true}}, nil)
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "k", key)
	})
}

func TestBindOptions_Persistent(t *testing.T) {
	v := viper.New()
	var engine, key string
	root, err := NewCommand(v, &Program{
		Name: "test",
		Opts: []Opt{{DestP: &engine, Flag: "engine", Default: "memory", Persistent: true}},
	})
	require.NoError(t, err)

	sub := &cobra.Command{
		Use:  "get",
		RunE: func(*cobra.Command, []string) error { return nil },
	}
	require.NoError(t, BindOptions(v, sub, []Opt{{DestP: &key, Flag: "key", Required: true}}))
	root.AddCommand(sub)

	root.SetArgs([]string{"get", "--engine", "bolt", "--key", "k"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "bolt", engine)
	assert.Equal(t, "k", key)
}
