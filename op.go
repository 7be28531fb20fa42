// Package gossipdht holds the raw inputs of the DHT synchronization core:
// ring locations, microsecond timestamps, and the op metadata that region
// trees aggregate.
package gossipdht

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// Loc is a location on the DHT ring.
type Loc uint32

// Uint32 returns the location as a raw ring position.
func (l Loc) Uint32() uint32 { return uint32(l) }

// LocFromBytes derives a ring location from arbitrary bytes such as an op
// hash or an agent key.
func LocFromBytes(b []byte) Loc {
	return Loc(xxhash.Sum64(b))
}

// Timestamp is a point in time measured in microseconds since the unix epoch.
type Timestamp int64

// TimestampFromMicros returns the Timestamp for the given microsecond count.
func TimestampFromMicros(us int64) Timestamp { return Timestamp(us) }

// TimestampFromTime converts t to a Timestamp, truncating to microseconds.
func TimestampFromTime(t time.Time) Timestamp { return Timestamp(t.UnixMicro()) }

// Micros returns the number of microseconds since the unix epoch.
func (t Timestamp) Micros() int64 { return int64(t) }

// Time returns the Timestamp as a time.Time in UTC.
func (t Timestamp) Time() time.Time { return time.UnixMicro(int64(t)).UTC() }

// OpHash is the 64 bit fingerprint of an op. Fingerprints of many ops are
// combined with XOR, so the combination is order independent.
type OpHash uint64

// HashOp returns the fingerprint of an op's serialized content.
func HashOp(content []byte) OpHash {
	return OpHash(xxhash.Sum64(content))
}

// OpData is the metadata of a single op as seen by the gossip layer.
type OpData struct {
	Loc       Loc
	Timestamp Timestamp
	Size      uint32
	Hash      OpHash
}

// NewOpData builds the metadata for an op from its serialized content.
// The location is derived from the content hash.
func NewOpData(content []byte, ts Timestamp) OpData {
	h := HashOp(content)
	return OpData{
		Loc:       Loc(uint64(h) >> 32),
		Timestamp: ts,
		Size:      uint32(len(content)),
		Hash:      h,
	}
}
