package region

import (
	"context"
	"fmt"
	"runtime"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/gossipdht"
	"github.com/influxdata/gossipdht/coords"
	"github.com/influxdata/gossipdht/kit/platform/errors"
	"golang.org/x/sync/errgroup"
)

const maxSpaceBits = 12

// MaxSpaceSegments bounds the number of space columns of a Set.
const MaxSpaceSegments = 1 << maxSpaceBits

// Set is the grid of regions a node offers for gossip comparison: every
// space segment of a fixed power crossed with the telescoping time
// segments up to now. Regions are ordered space-major.
type Set[T comparable] struct {
	SpacePower uint32
	Now        coords.TimeCoord
	Regions    []Region[T]
}

// NewSet builds the region set for the given space power and time, looking
// up every region's data in tree. Lookups run concurrently.
func NewSet[T comparable](ctx context.Context, topo *coords.Topology, tree Tree[T], spacePower uint32, now coords.TimeCoord) (*Set[T], error) {
	if spacePower > 32 || uint64(1)<<(32-spacePower) > MaxSpaceSegments {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Op:   "region/NewSet",
			Msg:  fmt.Sprintf("space power %d yields too many segments; must be between %d and 32", spacePower, 32-maxSpaceBits),
		}
	}

	times := topo.TelescopingTimes(now)
	columns := uint32(uint64(1) << (32 - spacePower))
	regions := make([]Region[T], 0, int(columns)*len(times))
	for x := uint32(0); x < columns; x++ {
		space := coords.NewSegment[coords.SpaceCoord](spacePower, x)
		for _, t := range times {
			regions = append(regions, Region[T]{Coords: NewRegionCoords(space, t)})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range regions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			regions[i].Data = tree.Lookup(regions[i].Coords.ToBounds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Set[T]{
		SpacePower: spacePower,
		Now:        now,
		Regions:    regions,
	}, nil
}

// NewSetAt builds the region set for the current time according to clk.
func NewSetAt[T comparable](ctx context.Context, topo *coords.Topology, tree Tree[T], spacePower uint32, clk clock.Clock) (*Set[T], error) {
	now := topo.TimeCoord(gossipdht.TimestampFromTime(clk.Now()))
	return NewSet(ctx, topo, tree, spacePower, now)
}

// Coords returns the coordinates of every region in the set.
func (s *Set[T]) Coords() []RegionCoords {
	out := make([]RegionCoords, len(s.Regions))
	for i, r := range s.Regions {
		out[i] = r.Coords
	}
	return out
}

// Diff returns the coordinates of the regions whose data differ between s
// and other. Both sets must have been built with the same space power and
// time.
func (s *Set[T]) Diff(other *Set[T]) ([]RegionCoords, error) {
	if s.SpacePower != other.SpacePower || s.Now != other.Now || len(s.Regions) != len(other.Regions) {
		return nil, &errors.Error{
			Code: errors.EConflict,
			Op:   "region/Set.Diff",
			Msg: fmt.Sprintf("region sets are not comparable: space power %d vs %d, now %d vs %d",
				s.SpacePower, other.SpacePower, s.Now, other.Now),
		}
	}

	var diff []RegionCoords
	for i, r := range s.Regions {
		if r.Data != other.Regions[i].Data {
			diff = append(diff, r.Coords)
		}
	}
	return diff, nil
}
