package main

import (
	"context"
	"fmt"

	"github.com/influxdata/gossipdht/buffer"
	"github.com/influxdata/gossipdht/buffer/kvv"
	"github.com/influxdata/gossipdht/kit/cli"
	"github.com/influxdata/gossipdht/kv"
	"github.com/influxdata/gossipdht/logger"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type kvvCommand struct {
	*app
	table string
	key   string
	value string
}

func newKVVCommand(a *app) (*cobra.Command, error) {
	k := &kvvCommand{app: a}
	cmd := &cobra.Command{
		Use:   "kvv",
		Short: "Read and write string values of a multi-value table",
	}
	if err := cli.BindOptions(a.v, cmd, []cli.Opt{
		{DestP: &k.table, Flag: "table", Default: "dhtctl", Desc: "table name", Persistent: true},
	}); err != nil {
		return nil, err
	}

	subs := []struct {
		use, short string
		needValue  bool
		run        func(ctx context.Context, buf *kvv.Buf[string, string], store kv.Store) error
	}{
		{use: "get", short: "Print every value stored under a key", run: k.get},
		{use: "insert", short: "Add a value under a key", needValue: true, run: k.insert},
		{use: "delete", short: "Remove one value from a key", needValue: true, run: k.delete},
		{use: "delete-all", short: "Remove every value of a key", run: k.deleteAll},
	}
	for _, s := range subs {
		run := s.run
		sub := &cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) (err error) {
				defer func() {
					err = multierr.Append(err, k.registry.Close())
				}()
				return k.withBuf(cmd.Context(), run)
			},
		}
		opts := []cli.Opt{{DestP: &k.key, Flag: "key", Desc: "key to operate on", Required: true}}
		if s.needValue {
			opts = append(opts, cli.Opt{DestP: &k.value, Flag: "value", Desc: "value to operate on", Required: true})
		}
		if err := cli.BindOptions(a.v, sub, opts); err != nil {
			return nil, err
		}
		cmd.AddCommand(sub)
	}
	return cmd, nil
}

func (k *kvvCommand) withBuf(ctx context.Context, fn func(context.Context, *kvv.Buf[string, string], kv.Store) error) error {
	table, err := k.registry.MultiTable(ctx, k.config.Storage, k.table)
	if err != nil {
		return err
	}
	store, err := k.registry.Open(ctx, k.config.Storage)
	if err != nil {
		return err
	}
	buf := kvv.New[string, string](table, kvv.StringCodec{}, kvv.StringCodec{}).
		WithLogger(logger.FromContext(ctx))
	return fn(ctx, buf, store)
}

func (k *kvvCommand) get(ctx context.Context, buf *kvv.Buf[string, string], store kv.Store) error {
	return store.View(ctx, func(tx kv.Tx) error {
		values, err := buf.Get(tx, k.key)
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Fprintln(k.stdout, v)
		}
		return nil
	})
}

func (k *kvvCommand) insert(ctx context.Context, buf *kvv.Buf[string, string], store kv.Store) error {
	buf.Insert(k.key, k.value)
	return k.flush(ctx, buf, store)
}

func (k *kvvCommand) delete(ctx context.Context, buf *kvv.Buf[string, string], store kv.Store) error {
	buf.Delete(k.key, k.value)
	return k.flush(ctx, buf, store)
}

func (k *kvvCommand) deleteAll(ctx context.Context, buf *kvv.Buf[string, string], store kv.Store) error {
	buf.DeleteAll(k.key)
	return k.flush(ctx, buf, store)
}

func (k *kvvCommand) flush(ctx context.Context, buf *kvv.Buf[string, string], store kv.Store) error {
	if err := buffer.FlushAll(ctx, store, buf); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Table updated",
		zap.String("table", k.table),
		zap.String("key", k.key),
		zap.String("engine", k.config.Storage.Engine))
	return nil
}
