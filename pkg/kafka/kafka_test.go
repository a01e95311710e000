package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/EcommerceGo/authgateway/pkg/logger"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	c := headerCarrier(msg.Headers)
	return c.Get(key)
}

func TestNewEvent(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	ev, err := NewEvent(ctx, "user.logged_in", Aggregate{Type: "user", ID: "42"}, map[string]string{"role": "customer"})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "user.logged_in", ev.Type)
	assert.Equal(t, "42", ev.AggregateID)
	assert.Equal(t, "user", ev.AggregateType)
	assert.Equal(t, "corr-1", ev.CorrelationID)
	assert.WithinDuration(t, time.Now().UTC(), ev.OccurredAt, 2*time.Second)
	assert.JSONEq(t, `{"role":"customer"}`, string(ev.Data))
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent(context.Background(), "x", Aggregate{Type: "user", ID: "1"}, make(chan int))
	assert.Error(t, err)
}

func TestEvent_WithMetadata(t *testing.T) {
	ev, err := NewEvent(context.Background(), "user.logged_in", Aggregate{Type: "user", ID: "42"}, nil)
	require.NoError(t, err)

	ev.WithMetadata("client_ip", "").WithMetadata("platform", "")
	assert.Nil(t, ev.Metadata)

	ev.WithMetadata("client_ip", "203.0.113.9")
	assert.Equal(t, map[string]string{"client_ip": "203.0.113.9"}, ev.Metadata)
}

func TestProducer_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	ctx = logger.WithCorrelationID(ctx, "corr-9")

	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, "auth-gateway", logger.Discard())

	ev, err := NewEvent(ctx, "user.logged_in", Aggregate{Type: "user", ID: "42"}, nil)
	require.NoError(t, err)
	ev.WithMetadata("client_ip", "203.0.113.9")
	require.NoError(t, p.Publish(ctx, "auth.events", ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "auth.events", msg.Topic)
	assert.Equal(t, []byte("42"), msg.Key)
	assert.Equal(t, "user.logged_in", header(msg, "event_type"))
	assert.Equal(t, "auth-gateway", header(msg, "source"))
	assert.Equal(t, "corr-9", header(msg, "correlation_id"))
	assert.Contains(t, header(msg, "traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "auth-gateway", body["source"])
	assert.Equal(t, float64(EnvelopeVersion), body["version"])
	assert.Equal(t, map[string]any{"client_ip": "203.0.113.9"}, body["metadata"])
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, "auth-gateway", logger.Discard())

	ev, err := NewEvent(context.Background(), "user.logged_in", Aggregate{Type: "user", ID: "42"}, nil)
	require.NoError(t, err)
	err = p.Publish(context.Background(), "auth.events", ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.events")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, nil, "auth-gateway", logger.Discard())
	assert.Error(t, p.Ping(context.Background()))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewProducerWithWriter(w, nil, "auth-gateway", logger.Discard()).Close())
	assert.True(t, w.closed)
}

func TestHeaderCarrier(t *testing.T) {
	c := headerCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent", "baggage"}, c.Keys())
}
