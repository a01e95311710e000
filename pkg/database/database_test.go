package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	exporter := setupTestTracer(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Get(context.Background(), "user-access:customer:1").Result()
	assert.ErrorIs(t, err, redis.Nil)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
		if s.Name == "redis.get" {
			assert.NotEqual(t, codes.Error, s.Status.Code, "cache miss is not an error")
		}
	}
	assert.Contains(t, names, "redis.ping")
	assert.Contains(t, names, "redis.get")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestTracingHook_Pipeline(t *testing.T) {
	mr := miniredis.RunT(t)
	exporter := setupTestTracer(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(TracingHook{})
	t.Cleanup(func() { _ = client.Close() })

	_, err := client.Pipelined(context.Background(), func(p redis.Pipeliner) error {
		p.Set(context.Background(), "a", "1", 0)
		p.Set(context.Background(), "b", "2", 0)
		return nil
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "redis.pipeline", spans[len(spans)-1].Name)
}

func TestTraceQuery(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetUserByPhone", "SELECT id FROM users WHERE phone = $1")
	end(errors.New("no rows"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.GetUserByPhone", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTraceQuery_SlowQueryLogging(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "UpdatePassword", "UPDATE users SET password_hash = $1")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "UpdatePassword")
	assert.NotContains(t, buf.String(), "password_hash")
}

func TestRetryBackoff(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := retryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))
		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
	assert.InDelta(t, float64(retryBaseWait), float64(retryBackoff(-1)), float64(retryBaseWait)/4+1)
}

func TestNewPostgresPool_BadURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), PostgresConfig{URL: "://nope"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse postgres url")
}

func TestNewPostgresPool_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPostgresPool(ctx, PostgresConfig{
		URL:             "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1",
		ConnectAttempts: 2,
	}, nil)
	require.Error(t, err)
}

func TestPoolStatsCollector_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	c := NewPoolStatsCollector(nil, client)
	assert.Equal(t, 4, testutil.CollectAndCount(c))
}
