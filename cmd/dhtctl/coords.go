package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/influxdata/gossipdht"
	"github.com/influxdata/gossipdht/coords"
	"github.com/influxdata/gossipdht/kit/cli"
	"github.com/influxdata/gossipdht/region"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

func newTelescopeCommand(a *app) (*cobra.Command, error) {
	var now uint32
	cmd := &cobra.Command{
		Use:   "telescope",
		Short: "Print the telescoping time segments covering [0, now)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			topo := coords.IdentityTopology(0)
			for _, s := range topo.TelescopingTimes(coords.TimeCoord(now)) {
				fmt.Fprintln(a.stdout, s)
			}
			return nil
		},
	}
	err := cli.BindOptions(a.v, cmd, []cli.Opt{
		{DestP: &now, Flag: "now", Desc: "current time coordinate"},
	})
	return cmd, err
}

// maxSegmentDepth bounds the tree printed by the segment command.
const maxSegmentDepth = 8

func newSegmentCommand(a *app) (*cobra.Command, error) {
	var power, offset uint32
	var depth int
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Print a segment and the tree of its halves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if power > 32 {
				return fmt.Errorf("power %d is larger than 32", power)
			}
			if power < 32 && uint64(offset) >= uint64(1)<<(32-power) {
				return fmt.Errorf("offset %d is out of range for power %d", offset, power)
			}
			if depth < 0 || depth > maxSegmentDepth {
				return fmt.Errorf("depth must be between 0 and %d", maxSegmentDepth)
			}
			tree := treeprint.New()
			addSegment(tree, coords.NewSegment[coords.SpaceCoord](power, offset), depth)
			fmt.Fprint(a.stdout, tree.String())
			return nil
		},
	}
	err := cli.BindOptions(a.v, cmd, []cli.Opt{
		{DestP: &power, Flag: "power", Desc: "segment power; the segment has length 2^power"},
		{DestP: &offset, Flag: "offset", Desc: "segment offset in units of its length"},
		{DestP: &depth, Flag: "depth", Default: 1, Desc: "levels of halves to print"},
	})
	return cmd, err
}

func addSegment(t treeprint.Tree, s coords.SpaceSegment, depth int) {
	branch := t.AddBranch(s.String())
	if depth == 0 {
		return
	}
	if lo, hi, ok := s.Halve(); ok {
		addSegment(branch, lo, depth-1)
		addSegment(branch, hi, depth-1)
	}
}

func newRegionsCommand(a *app) (*cobra.Command, error) {
	var (
		spacePower uint32
		now        uint32
		ops        []string
		all        bool
	)
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Print the region set built from a list of ops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			topo := coords.IdentityTopology(0)
			tree := region.NewOpTree(topo)
			for _, s := range ops {
				op, err := parseOp(s)
				if err != nil {
					return err
				}
				tree.Add(op)
			}

			set, err := region.NewSet[region.Data](cmd.Context(), topo, tree, spacePower, coords.TimeCoord(now))
			if err != nil {
				return err
			}
			for _, r := range set.Regions {
				if r.Data.IsZero() && !all {
					continue
				}
				fmt.Fprintf(a.stdout, "%s count=%d size=%s hash=%016x\n", r.Coords, r.Data.Count, humanize.Bytes(uint64(r.Data.Size)), uint64(r.Data.Hash))
			}
			return nil
		},
	}
	err := cli.BindOptions(a.v, cmd, []cli.Opt{
		{DestP: &spacePower, Flag: "space-power", Default: uint32(28), Desc: "power of every space segment"},
		{DestP: &now, Flag: "now", Desc: "current time coordinate"},
		{DestP: &ops, Flag: "op", Desc: "op as content@micros; may be repeated"},
		{DestP: &all, Flag: "all", Desc: "also print empty regions"},
	})
	return cmd, err
}

// parseOp reads an op given as content@micros.
func parseOp(s string) (gossipdht.OpData, error) {
	i := strings.LastIndexByte(s, '@')
	if i < 0 {
		return gossipdht.OpData{}, fmt.Errorf("op %q: want content@micros", s)
	}
	us, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return gossipdht.OpData{}, fmt.Errorf("op %q: %w", s, err)
	}
	return gossipdht.NewOpData([]byte(s[:i]), gossipdht.TimestampFromMicros(us)), nil
}
