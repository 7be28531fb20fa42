package coords

import (
	"math"
	"math/bits"

	"github.com/influxdata/gossipdht"
)

// Dimension describes the quantization of one axis.
type Dimension struct {
	// Quantum is the smallest possible length in this dimension. It is the
	// length of the interval represented by a leaf of a tree.
	Quantum uint32
	// Size is the largest possible value; the size of this dimension.
	Size uint32
	// BitDepth is the number of bits used to represent a coordinate.
	BitDepth uint8
}

// IdentityDimension maps one raw unit to one coordinate unit.
func IdentityDimension() Dimension {
	return Dimension{
		Quantum:  1,
		Size:     math.MaxUint32,
		BitDepth: 32,
	}
}

// Topology holds the parameters which are constant for all trees in a
// given network. They determine the relationship between tree structure
// and absolute space and time.
//
// A Topology is never mutated after construction and may be shared freely
// between goroutines.
type Topology struct {
	Space      Dimension
	Time       Dimension
	TimeOrigin gossipdht.Timestamp
}

// IdentityTopology returns a Topology with identity dimensions on both
// axes, with time measured from origin.
func IdentityTopology(origin gossipdht.Timestamp) *Topology {
	return &Topology{
		Space:      IdentityDimension(),
		Time:       IdentityDimension(),
		TimeOrigin: origin,
	}
}

// SpaceCoord converts a ring location to a space coordinate.
//
// Only the identity quantization of space is implemented; any other space
// Dimension panics.
func (t *Topology) SpaceCoord(loc gossipdht.Loc) SpaceCoord {
	if t.Space != IdentityDimension() {
		panic("alternate quantizations of space are not yet supported")
	}
	return SpaceCoord(loc.Uint32())
}

// TimeCoord converts a timestamp to a time coordinate, measured in
// microseconds from the topology's time origin and truncated to 32 bits.
//
// Only the identity quantization of time is implemented; any other time
// Dimension panics.
func (t *Topology) TimeCoord(ts gossipdht.Timestamp) TimeCoord {
	if t.Time != IdentityDimension() {
		panic("alternate quantizations of time are not yet supported")
	}
	return TimeCoord(uint32(ts.Micros() - t.TimeOrigin.Micros()))
}

// SpacetimeCoords converts an op's location and timestamp together.
func (t *Topology) SpacetimeCoords(loc gossipdht.Loc, ts gossipdht.Timestamp) SpacetimeCoords {
	return SpacetimeCoords{
		Space: t.SpaceCoord(loc),
		Time:  t.TimeCoord(ts),
	}
}

// TelescopingTimes decomposes [0, now) into time segments whose lengths
// shrink geometrically toward the present.
//
// The segments are returned oldest first. Their powers never increase,
// their lengths sum to now, and they tile [0, now) without gaps: each
// segment starts where the previous one ended. When now > 0 the last
// segment always has power 0. The number of segments is O(log now).
//
// Like TimeCoord, only the identity quantization of time is implemented.
func (t *Topology) TelescopingTimes(now TimeCoord) []TimeSegment {
	if t.Time != IdentityDimension() {
		panic("alternate quantizations of time are not yet supported")
	}
	var (
		segs   []TimeSegment
		remain = uint64(now)
		start  uint64
	)
	for remain >= uint64(t.Time.Quantum) {
		// floor(log2(remain + 1)) - 1
		pow := uint32(bits.Len64(remain+1) - 2)
		length := uint64(1) << pow
		segs = append(segs, NewSegment[TimeCoord](pow, uint32(start>>pow)))
		start += length
		remain -= length
	}
	return segs
}
