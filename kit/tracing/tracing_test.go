package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"
)

func setupMockTracer(t *testing.T) *mocktracer.MockTracer {
	tracer := mocktracer.New()
	old := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(old) })
	return tracer
}

func TestStartSpanFromContext(t *testing.T) {
	tracer := setupMockTracer(t)

	tests := []struct {
		name         string
		ctx          context.Context
		expectPanic  bool
		expectParent bool
	}{
		{name: "nil context", ctx: nil, expectPanic: true},
		{name: "background", ctx: context.Background()},
		{
			name:         "with parent",
			ctx:          opentracing.ContextWithSpan(context.Background(), tracer.StartSpan("parent operation name")),
			expectParent: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracer.Reset()

			var span opentracing.Span
			var ctx context.Context
			var gotPanic bool

			func(inputCtx context.Context) {
				defer func() {
					if recover() != nil {
						gotPanic = true
					}
				}()
				span, ctx = StartSpanFromContext(inputCtx)
			}(tc.ctx)

			require.Equal(t, tc.expectPanic, gotPanic)
			if tc.expectPanic {
				return
			}
			require.NotNil(t, ctx)
			require.NotEqual(t, tc.ctx, ctx, "always expect fresh context")
			span.Finish()

			finished := tracer.FinishedSpans()
			require.Len(t, finished, 1)
			require.Contains(t, finished[0].OperationName, "tracing.TestStartSpanFromContext")
			require.Contains(t, finished[0].Tag("location"), "tracing_test.go:")
			require.Equal(t, tc.expectParent, finished[0].ParentID != 0)
		})
	}
}

func TestLogError(t *testing.T) {
	tracer := setupMockTracer(t)

	span := tracer.StartSpan("op")
	boom := errors.New("boom")
	require.Equal(t, boom, LogError(span, boom))
	require.NoError(t, LogError(span, nil))
	span.Finish()

	logs := tracer.FinishedSpans()[0].Logs()
	require.Len(t, logs, 1)
	require.Equal(t, "error", logs[0].Fields[0].Key)
	require.Equal(t, "boom", logs[0].Fields[0].ValueString)
}

func BenchmarkStartSpanFromContext(b *testing.B) {
	b.ReportAllocs()

	parentSpan := opentracing.StartSpan("parent operation name")
	ctx := opentracing.ContextWithSpan(context.Background(), parentSpan)

	for n := 0; n < b.N; n++ {
		StartSpanFromContext(ctx)
	}
}
