package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/pr-poehali-dev/zdrav-project/pkg/logger"
)

func serveRequestLogger(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	handler := RequestLogger(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handler log")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	return lines[0]
}

func TestRequestLogger_EnrichesWithContextFields(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = logger.WithCorrelationID(ctx, "corr-123")
	ctx = logger.WithSessionID(ctx, "sess-abc")

	line := serveRequestLogger(t, ctx)

	assert.Equal(t, "handler log", line["msg"])
	assert.Equal(t, "storefront-test", line["service"])
	assert.Equal(t, "corr-123", line["correlation_id"])
	assert.Equal(t, "sess-abc", line["session_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", line["span_id"])
}

func TestRequestLogger_OmitsMissingFields(t *testing.T) {
	line := serveRequestLogger(t, context.Background())

	assert.NotContains(t, line, "session_id")
	assert.NotContains(t, line, "correlation_id")
	assert.NotContains(t, line, "trace_id")
}
