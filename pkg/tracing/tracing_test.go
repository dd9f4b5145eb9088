package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupRecorder 安装内存中的Span记录器，测试结束后关闭Provider
func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp, err := NewProvider(Config{ServiceName: "ebookstore-test"}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	Install(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan_ParentChild(t *testing.T) {
	recorder := setupRecorder(t)

	ctx, parent := StartSpan(context.Background(), "payment", "Checkout")
	_, child := StartSpan(ctx, "order", "CreateOrder")
	child.SetAttributes(attribute.String("order.custom_id", "ORD-202401-0001"))
	child.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "CreateOrder", spans[0].Name())
	assert.Equal(t, "Checkout", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID(), "父子Span应属于同一条链路")
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Contains(t, spans[0].Attributes(), attribute.String("order.custom_id", "ORD-202401-0001"))
}

func TestRecordError(t *testing.T) {
	recorder := setupRecorder(t)

	_, span := StartSpan(context.Background(), "payment", "VerifyTransaction")
	RecordError(span, nil)
	RecordError(span, errors.New("gateway timeout"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "gateway timeout", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1, "只有非nil错误才记录事件")
}

func TestExtractIDs(t *testing.T) {
	setupRecorder(t)

	if got := ExtractTraceID(context.Background()); got != "" {
		t.Errorf("无Span时TraceID应为空，实际%s", got)
	}
	if got := ExtractSpanID(context.Background()); got != "" {
		t.Errorf("无Span时SpanID应为空，实际%s", got)
	}

	ctx, span := StartSpan(context.Background(), "test", "op")
	defer span.End()

	assert.Len(t, ExtractTraceID(ctx), 32)
	assert.Len(t, ExtractSpanID(ctx), 16)
	assert.Equal(t, span.SpanContext().TraceID().String(), ExtractTraceID(ctx))
}

func TestNewProvider_SampleRatio(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := NewProvider(Config{ServiceName: "s", SampleRatio: 0.000001}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	sampled := 0
	for i := 0; i < 100; i++ {
		_, span := tp.Tracer("t").Start(context.Background(), "op")
		if span.SpanContext().IsSampled() {
			sampled++
		}
		span.End()
	}
	assert.Less(t, sampled, 5, "极低采样率下几乎不应采样")
}
