package region

import "github.com/influxdata/gossipdht"

// Data is the aggregate a region carries for gossip comparison: how many
// ops it holds, their total size, and the XOR of their fingerprints.
//
// Data forms a group under Add/Sub, so the data of a region can be
// maintained incrementally as ops arrive and leave.
type Data struct {
	Count uint32
	Size  uint32
	Hash  gossipdht.OpHash
}

// DataOf returns the data of a region holding just op.
func DataOf(op gossipdht.OpData) Data {
	return Data{Count: 1, Size: op.Size, Hash: op.Hash}
}

// Add combines two aggregates.
func (d Data) Add(o Data) Data {
	return Data{
		Count: d.Count + o.Count,
		Size:  d.Size + o.Size,
		Hash:  d.Hash ^ o.Hash,
	}
}

// Sub removes o from d.
func (d Data) Sub(o Data) Data {
	return Data{
		Count: d.Count - o.Count,
		Size:  d.Size - o.Size,
		Hash:  d.Hash ^ o.Hash,
	}
}

// IsZero reports whether the region is empty.
func (d Data) IsZero() bool {
	return d == (Data{})
}
