// Package errors defines the coded error shared by the storage, buffer and
// region packages.
package errors

import (
	"errors"
	"fmt"
)

// Error codes. Packages returning *Error pick one of these so that callers
// can branch on ErrorCode.
const (
	EInternal            = "internal error"
	ENotFound            = "not found"
	EConflict            = "conflict"             // action cannot be performed
	EInvalid             = "invalid"              // validation failed, or persisted data has the wrong shape
	EUnprocessableEntity = "unprocessable entity" // data type is correct, but cannot be encoded/decoded
	EUnavailable         = "unavailable"
)

const internalMessage = "An internal error has occurred."

// Error is a coded error. Code is for programs, Msg for the operator. Op
// names where the error happened and Err is the cause, so a chain of
// errors reads as a logical stack.
//
//	&Error{
//	    Code: EInvalid,
//	    Op:   "kvv/Get",
//	    Err:  err,
//	}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error joins the message and the cause. An error with neither prints its
// code.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// first walks the *Error chain of err and returns the first non-empty field
// picked by get. It returns fallback when err holds no *Error or the chain
// ends without one.
func first(err error, get func(*Error) string, fallback string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	for e != nil {
		if v := get(e); v != "" {
			return v
		}
		if !errors.As(e.Err, &e) {
			break
		}
	}
	return fallback
}

// ErrorCode returns the first code in the chain, or EInternal.
func ErrorCode(err error) string {
	return first(err, func(e *Error) string { return e.Code }, EInternal)
}

// ErrorOp returns the first op in the chain, or "".
func ErrorOp(err error) string {
	return first(err, func(e *Error) string { return e.Op }, "")
}

// ErrorMessage returns the first message in the chain, or a generic one.
func ErrorMessage(err error) string {
	return first(err, func(e *Error) string { return e.Msg }, internalMessage)
}
