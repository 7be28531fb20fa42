package kvv

import (
	"bytes"
	"cmp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// Codec gives keys and values of type T a deterministic encoding and a
// total order. Compare must agree with equality of the encodings.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
	Compare(a, b T) int
}

func trailing(rest []byte) error {
	if len(rest) != 0 {
		return errors.Errorf("%d trailing bytes after value", len(rest))
	}
	return nil
}

// StringCodec encodes strings as msgpack str.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) {
	return msgp.AppendString(nil, v), nil
}

func (StringCodec) Decode(b []byte) (string, error) {
	v, rest, err := msgp.ReadStringBytes(b)
	if err != nil {
		return "", errors.Wrap(err, "decode string")
	}
	return v, trailing(rest)
}

func (StringCodec) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// BytesCodec encodes byte slices as msgpack bin.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) {
	return msgp.AppendBytes(nil, v), nil
}

func (BytesCodec) Decode(b []byte) ([]byte, error) {
	v, rest, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decode bytes")
	}
	return v, trailing(rest)
}

func (BytesCodec) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Uint64Codec encodes integers as msgpack uint.
type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64) ([]byte, error) {
	return msgp.AppendUint64(nil, v), nil
}

func (Uint64Codec) Decode(b []byte) (uint64, error) {
	v, rest, err := msgp.ReadUint64Bytes(b)
	if err != nil {
		return 0, errors.Wrap(err, "decode uint64")
	}
	return v, trailing(rest)
}

func (Uint64Codec) Compare(a, b uint64) int {
	return cmp.Compare(a, b)
}

// MsgpType is satisfied by pointers to msgp generated types.
type MsgpType[T any] interface {
	*T
	msgp.Marshaler
	msgp.Unmarshaler
}

// MsgpCodec encodes values of a msgp generated type T. Values are ordered
// by cmp.
type MsgpCodec[T any, P MsgpType[T]] struct {
	cmp func(a, b T) int
}

// NewMsgpCodec returns a codec for T ordered by cmp.
func NewMsgpCodec[T any, P MsgpType[T]](cmp func(a, b T) int) MsgpCodec[T, P] {
	return MsgpCodec[T, P]{cmp: cmp}
}

func (c MsgpCodec[T, P]) Encode(v T) ([]byte, error) {
	b, err := P(&v).MarshalMsg(nil)
	if err != nil {
		return nil, errors.Wrap(err, "encode msgp value")
	}
	return b, nil
}

func (c MsgpCodec[T, P]) Decode(b []byte) (T, error) {
	var v T
	rest, err := P(&v).UnmarshalMsg(b)
	if err != nil {
		return v, errors.Wrap(err, "decode msgp value")
	}
	return v, trailing(rest)
}

func (c MsgpCodec[T, P]) Compare(a, b T) int {
	return c.cmp(a, b)
}
