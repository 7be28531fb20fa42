package region

import (
	"fmt"

	"github.com/influxdata/gossipdht/coords"
)

// RegionCoords identifies a rectangle of the space x time plane by one
// segment on each axis.
type RegionCoords struct {
	Space coords.SpaceSegment
	Time  coords.TimeSegment
}

// NewRegionCoords pairs a space and a time segment.
func NewRegionCoords(space coords.SpaceSegment, time coords.TimeSegment) RegionCoords {
	return RegionCoords{Space: space, Time: time}
}

// ToBounds returns the inclusive coordinate ranges covered on each axis.
func (c RegionCoords) ToBounds() RegionBounds {
	x0, x1 := c.Space.Bounds()
	t0, t1 := c.Time.Bounds()
	return RegionBounds{
		X: [2]coords.SpaceCoord{x0, x1},
		T: [2]coords.TimeCoord{t0, t1},
	}
}

// HalveSpace splits the rectangle in two along the space axis, keeping the
// time segment. ok is false when the space segment is a leaf.
func (c RegionCoords) HalveSpace() (lo, hi RegionCoords, ok bool) {
	a, b, ok := c.Space.Halve()
	if !ok {
		return lo, hi, false
	}
	return RegionCoords{Space: a, Time: c.Time}, RegionCoords{Space: b, Time: c.Time}, true
}

// HalveTime splits the rectangle in two along the time axis, keeping the
// space segment. ok is false when the time segment is a leaf.
func (c RegionCoords) HalveTime() (lo, hi RegionCoords, ok bool) {
	a, b, ok := c.Time.Halve()
	if !ok {
		return lo, hi, false
	}
	return RegionCoords{Space: c.Space, Time: a}, RegionCoords{Space: c.Space, Time: b}, true
}

// Halve splits the rectangle along a single axis: the axis whose segment
// has the larger power, space on ties. ok is false only when both segments
// are leaves.
func (c RegionCoords) Halve() (lo, hi RegionCoords, ok bool) {
	if c.Space.Power >= c.Time.Power {
		if lo, hi, ok = c.HalveSpace(); ok {
			return lo, hi, true
		}
	}
	return c.HalveTime()
}

func (c RegionCoords) String() string {
	return fmt.Sprintf("x=%s t=%s", c.Space, c.Time)
}

// RegionBounds are the inclusive coordinate ranges of a region.
type RegionBounds struct {
	X [2]coords.SpaceCoord
	T [2]coords.TimeCoord
}

// Contains reports whether p lies within the bounds. A space range whose
// low end is above its high end wraps around the ring.
func (b RegionBounds) Contains(p coords.SpacetimeCoords) bool {
	if p.Time < b.T[0] || p.Time > b.T[1] {
		return false
	}
	if b.X[0] <= b.X[1] {
		return b.X[0] <= p.Space && p.Space <= b.X[1]
	}
	return p.Space >= b.X[0] || p.Space <= b.X[1]
}
