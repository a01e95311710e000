package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func logLine(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	l := NewWithWriter("auth-gateway", "info", &buf)
	WithContext(ctx, l).Info("line")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_TagsService(t *testing.T) {
	out := logLine(t, context.Background())
	assert.Equal(t, "auth-gateway", out["service"])
}

func TestWithContext_Empty(t *testing.T) {
	out := logLine(t, context.Background())
	for _, k := range []string{"correlation_id", "user_id", "role", "trace_id", "span_id"} {
		assert.NotContains(t, out, k)
	}
}

func TestWithContext_Identity(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-123")
	ctx = WithIdentity(ctx, "42", "rider")
	ctx = WithClientIP(ctx, "203.0.113.9")

	out := logLine(t, ctx)
	assert.Equal(t, "req-123", out["correlation_id"])
	assert.Equal(t, "42", out["user_id"])
	assert.Equal(t, "rider", out["role"])
	assert.Equal(t, "203.0.113.9", out["client_ip"])
}

func TestWithContext_Span(t *testing.T) {
	ctx := WithCorrelationID(spanContext(t), "req-456")

	out := logLine(t, ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
	assert.Equal(t, "req-456", out["correlation_id"])
}

func TestFromContext(t *testing.T) {
	l := Discard()
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestIdentityAccessors(t *testing.T) {
	ctx := WithIdentity(context.Background(), "7", "admin")
	assert.Equal(t, "7", UserIDFromContext(ctx))
	assert.Equal(t, "admin", RoleFromContext(ctx))
	assert.Empty(t, RoleFromContext(context.Background()))
	assert.Empty(t, ClientIPFromContext(context.Background()))
}
