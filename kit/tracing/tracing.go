// Package tracing starts opentracing spans named after the calling
// function.
package tracing

import (
	"context"
	"fmt"
	"runtime"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
)

// StartSpanFromContext starts a child of the span in ctx, or a root span,
// named after the function that called it. The caller's file:line is
// recorded as the "location" tag.
func StartSpanFromContext(ctx context.Context) (opentracing.Span, context.Context) {
	name, location := caller(2)
	span, ctx := opentracing.StartSpanFromContext(ctx, name)
	if location != "" {
		span.SetTag("location", location)
	}
	return span, ctx
}

// LogError records err on span and returns it unchanged, so it can wrap a
// return value:
//
//	return tracing.LogError(span, err)
func LogError(span opentracing.Span, err error) error {
	if err != nil {
		span.LogFields(log.Error(err))
	}
	return err
}

// caller describes the function skip frames above caller's own caller.
func caller(skip int) (name, location string) {
	var pcs [1]uintptr
	if runtime.Callers(skip+1, pcs[:]) == 0 {
		return "unknown", ""
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	return frame.Function, fmt.Sprintf("%s:%d", frame.File, frame.Line)
}
