package coords_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/influxdata/gossipdht/coords"
	"github.com/stretchr/testify/require"
)

func TestSegment_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		seg    coords.SpaceSegment
		lo, hi uint32
		length uint64
	}{
		{"leaf at origin", coords.NewSegment[coords.SpaceCoord](0, 0), 0, 0, 1},
		{"leaf", coords.NewSegment[coords.SpaceCoord](0, 9), 9, 9, 1},
		{"power 3", coords.NewSegment[coords.SpaceCoord](3, 2), 16, 23, 8},
		{"last leaf", coords.NewSegment[coords.SpaceCoord](0, math.MaxUint32), math.MaxUint32, math.MaxUint32, 1},
		{"upper half", coords.NewSegment[coords.SpaceCoord](31, 1), 1 << 31, math.MaxUint32, 1 << 31},
		{"whole axis", coords.NewSegment[coords.SpaceCoord](32, 0), 0, math.MaxUint32, 1 << 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := tt.seg.Bounds()
			require.Equal(t, coords.SpaceCoord(tt.lo), lo)
			require.Equal(t, coords.SpaceCoord(tt.hi), hi)
			require.Equal(t, tt.length, tt.seg.Length())
			require.True(t, tt.seg.Contains(lo))
			require.True(t, tt.seg.Contains(hi))
		})
	}
}

func TestSegment_LeafHasNoChildren(t *testing.T) {
	for _, offset := range []uint32{0, 1, 2, 1 << 20, math.MaxUint32} {
		_, _, ok := coords.NewSegment[coords.TimeCoord](0, offset).Halve()
		require.False(t, ok, "offset %d", offset)
	}
}

func checkHalve[C coords.Coord](t *testing.T, parent coords.Segment[C]) {
	t.Helper()

	a, b, ok := parent.Halve()
	require.True(t, ok)
	require.Equal(t, parent.Power-1, a.Power)
	require.Equal(t, parent.Power-1, b.Power)

	plo, phi := parent.Bounds()
	alo, ahi := a.Bounds()
	blo, bhi := b.Bounds()
	require.Equal(t, plo, alo)
	require.Equal(t, phi, bhi)
	require.Equal(t, uint64(ahi)+1, uint64(blo))
	require.Equal(t, parent.Length(), a.Length()+b.Length())
}

func TestSegment_HalveRoundTrip(t *testing.T) {
	checkHalve(t, coords.NewSegment[coords.SpaceCoord](32, 0))
	checkHalve(t, coords.NewSegment[coords.TimeCoord](1, 0))
	checkHalve(t, coords.NewSegment[coords.TimeCoord](1, math.MaxUint32>>1))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		power := uint32(rng.Intn(32)) + 1
		// offsets are only meaningful while the segment stays on the axis
		offset := uint32(rng.Uint64() % (uint64(1) << (32 - power)))
		checkHalve(t, coords.NewSegment[coords.SpaceCoord](power, offset))
		checkHalve(t, coords.NewSegment[coords.TimeCoord](power, offset))
	}
}

func TestSegment_String(t *testing.T) {
	require.Equal(t, "2^3@2[16,23]", coords.NewSegment[coords.TimeCoord](3, 2).String())
}
