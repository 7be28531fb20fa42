// Package coords maps raw ring locations and timestamps onto a quantized,
// power-of-two coordinate system, and describes intervals in that system
// as nodes of an implicit binary tree.
package coords

import (
	"fmt"
	"math"
)

// MaxCoord is the largest coordinate value along either axis.
const MaxCoord = math.MaxUint32

// SpaceCoord is a quantized position along the space (ring location) axis.
type SpaceCoord uint32

// TimeCoord is a quantized position along the time axis.
type TimeCoord uint32

// Coord is satisfied by the coordinate types of both axes. Space and time
// coordinates are distinct types, so they cannot be mixed by accident.
type Coord interface {
	SpaceCoord | TimeCoord
}

// Uint32 returns the raw coordinate value.
func (c SpaceCoord) Uint32() uint32 { return uint32(c) }

// Exp returns c * 2^pow. It panics if the result does not fit in 32 bits.
func (c SpaceCoord) Exp(pow uint8) uint32 { return exp(uint32(c), pow) }

// ExpWrapping returns c * 2^pow truncated to 32 bits.
func (c SpaceCoord) ExpWrapping(pow uint8) uint32 { return expWrapping(uint32(c), pow) }

// WrappingAdd adds n, wrapping around the ring.
func (c SpaceCoord) WrappingAdd(n uint32) SpaceCoord { return c + SpaceCoord(n) }

// WrappingSub subtracts n, wrapping around the ring.
func (c SpaceCoord) WrappingSub(n uint32) SpaceCoord { return c - SpaceCoord(n) }

// Add returns c + o. It panics on overflow.
func (c SpaceCoord) Add(o SpaceCoord) SpaceCoord { return SpaceCoord(add(uint32(c), uint32(o))) }

// Uint32 returns the raw coordinate value.
func (c TimeCoord) Uint32() uint32 { return uint32(c) }

// Exp returns c * 2^pow. It panics if the result does not fit in 32 bits.
func (c TimeCoord) Exp(pow uint8) uint32 { return exp(uint32(c), pow) }

// ExpWrapping returns c * 2^pow truncated to 32 bits.
func (c TimeCoord) ExpWrapping(pow uint8) uint32 { return expWrapping(uint32(c), pow) }

// WrappingAdd adds n, wrapping at the 32 bit boundary.
func (c TimeCoord) WrappingAdd(n uint32) TimeCoord { return c + TimeCoord(n) }

// WrappingSub subtracts n, wrapping at the 32 bit boundary.
func (c TimeCoord) WrappingSub(n uint32) TimeCoord { return c - TimeCoord(n) }

// Add returns c + o. It panics on overflow.
func (c TimeCoord) Add(o TimeCoord) TimeCoord { return TimeCoord(add(uint32(c), uint32(o))) }

func exp(v uint32, pow uint8) uint32 {
	if v == 0 {
		return 0
	}
	if pow >= 32 || uint64(v)<<pow > math.MaxUint32 {
		panic(fmt.Sprintf("coordinate overflow: %d * 2^%d does not fit in 32 bits", v, pow))
	}
	return v << pow
}

func expWrapping(v uint32, pow uint8) uint32 {
	if pow >= 64 {
		return 0
	}
	return uint32(uint64(v) << pow)
}

func add(a, b uint32) uint32 {
	s := a + b
	if s < a {
		panic(fmt.Sprintf("coordinate overflow: %d + %d does not fit in 32 bits", a, b))
	}
	return s
}

// SpacetimeCoords is a point in the space x time plane.
type SpacetimeCoords struct {
	Space SpaceCoord
	Time  TimeCoord
}

// Tuple returns the raw (space, time) pair.
func (c SpacetimeCoords) Tuple() (uint32, uint32) {
	return uint32(c.Space), uint32(c.Time)
}
