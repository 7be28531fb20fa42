package errors_test

import (
	"fmt"
	"testing"

	"github.com/influxdata/gossipdht/kit/platform/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorMsg(t *testing.T) {
	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{
			name: "simple error",
			err:  &errors.Error{Code: errors.ENotFound},
			msg:  "<not found>",
		},
		{
			name: "with message",
			err: &errors.Error{
				Code: errors.EInvalid,
				Msg:  "persisted value is not a blob",
			},
			msg: "persisted value is not a blob",
		},
		{
			name: "with message and wrapped error",
			err: &errors.Error{
				Code: errors.EInternal,
				Msg:  "storage failure",
				Err:  fmt.Errorf("disk full"),
			},
			msg: "storage failure: disk full",
		},
		{
			name: "wrapped error only",
			err: &errors.Error{
				Err: fmt.Errorf("disk full"),
			},
			msg: "disk full",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.msg, c.err.Error())
		})
	}
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "", errors.ErrorCode(nil))
	require.Equal(t, errors.EInternal, errors.ErrorCode(fmt.Errorf("plain")))
	require.Equal(t, errors.EInvalid, errors.ErrorCode(&errors.Error{Code: errors.EInvalid}))

	nested := &errors.Error{
		Op:  "kvv/flush",
		Err: &errors.Error{Code: errors.EUnprocessableEntity, Op: "kvv/encode"},
	}
	require.Equal(t, errors.EUnprocessableEntity, errors.ErrorCode(nested))
	require.Equal(t, "kvv/flush", errors.ErrorOp(nested))

	wrapped := fmt.Errorf("flushing: %w", nested)
	require.Equal(t, errors.EUnprocessableEntity, errors.ErrorCode(wrapped))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "An internal error has occurred.", errors.ErrorMessage(fmt.Errorf("plain")))

	err := &errors.Error{
		Code: errors.EInvalid,
		Op:   "kvv/get",
		Err:  &errors.Error{Msg: "bad shape"},
	}
	require.Equal(t, "bad shape", errors.ErrorMessage(err))
	require.Equal(t, "kvv/get", errors.ErrorOp(err))
}
