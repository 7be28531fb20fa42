package kvv

import (
	"fmt"

	"github.com/influxdata/gossipdht/kit/platform/errors"
)

// ErrInvalidValue reports a persisted value whose storage class is not an
// encoded blob. It means the table holds data written by something else.
func ErrInvalidValue(table string, got *RawValue) *errors.Error {
	typ := "missing"
	if got != nil {
		typ = got.Type.String()
	}
	return &errors.Error{
		Code: errors.EInvalid,
		Op:   "kvv/Get",
		Msg:  fmt.Sprintf("table %q holds a %s value where an encoded blob was expected", table, typ),
	}
}

// ErrDecodeValue is returned when a well formed blob cannot be decoded.
func ErrDecodeValue(err error) *errors.Error {
	return &errors.Error{
		Code: errors.EUnprocessableEntity,
		Msg:  "unable to decode value",
		Err:  err,
	}
}

// ErrEncodeValue is returned when a key or value cannot be encoded.
func ErrEncodeValue(err error) *errors.Error {
	return &errors.Error{
		Code: errors.EUnprocessableEntity,
		Msg:  "unable to encode value",
		Err:  err,
	}
}

// ErrStorage wraps a failure of the backing table.
func ErrStorage(op string, err error) *errors.Error {
	return &errors.Error{
		Code: errors.EInternal,
		Op:   op,
		Err:  err,
	}
}

// IsInvalidValue reports whether err was caused by a persisted value of the
// wrong shape.
func IsInvalidValue(err error) bool {
	return errors.ErrorCode(err) == errors.EInvalid
}
