package coords

import "fmt"

// Segment is an interval along one axis, described as a node of an
// implicit binary tree over that axis: the interval has length 2^Power
// and its left edge is at Offset * 2^Power.
//
// A Segment with Power 0 is a leaf covering a single quantum.
type Segment[C Coord] struct {
	Power  uint32
	Offset uint32
}

// SpaceSegment is an interval of the space axis.
type SpaceSegment = Segment[SpaceCoord]

// TimeSegment is an interval of the time axis.
type TimeSegment = Segment[TimeCoord]

// NewSegment returns the segment of length 2^power at the given offset.
func NewSegment[C Coord](power, offset uint32) Segment[C] {
	return Segment[C]{Power: power, Offset: offset}
}

// Length returns 2^Power. Power may be 32, so the length is 64 bits wide.
func (s Segment[C]) Length() uint64 {
	return uint64(1) << s.Power
}

// Bounds returns the inclusive low and high coordinates of the segment.
// The arithmetic is carried out in 64 bits and then narrowed.
func (s Segment[C]) Bounds() (C, C) {
	l := s.Length()
	o := uint64(s.Offset)
	return C(uint32(o * l)), C(uint32(o*l + l - 1))
}

// Contains reports whether c lies within the segment's bounds.
func (s Segment[C]) Contains(c C) bool {
	lo, hi := s.Bounds()
	return lo <= c && c <= hi
}

// Halve returns the two child segments of s, which together cover the
// same interval. A leaf cannot be halved, in which case ok is false.
func (s Segment[C]) Halve() (lo, hi Segment[C], ok bool) {
	if s.Power == 0 {
		return lo, hi, false
	}
	power := s.Power - 1
	return NewSegment[C](power, s.Offset*2), NewSegment[C](power, s.Offset*2+1), true
}

func (s Segment[C]) String() string {
	lo, hi := s.Bounds()
	return fmt.Sprintf("2^%d@%d[%d,%d]", s.Power, s.Offset, uint32(lo), uint32(hi))
}
