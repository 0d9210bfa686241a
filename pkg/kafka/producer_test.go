package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/zdrav-project/pkg/logger"
)

// --- Event tests ---

func TestNewEvent_Fields(t *testing.T) {
	type orderData struct {
		Total int64 `json:"total"`
	}

	event, err := NewEvent("storefront.order.submitted", "sess-1", "session", "storefront", orderData{Total: 2220000})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "storefront.order.submitted", event.EventType)
	assert.Equal(t, "sess-1", event.AggregateID)
	assert.Equal(t, "session", event.AggregateType)
	assert.Equal(t, "storefront", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got orderData
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, int64(2220000), got.Total)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("test.event", "agg-1", "test", "svc", make(chan int))
	require.Error(t, err)
}

func TestNewEventFromContext_CopiesCorrelationID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")

	event, err := NewEventFromContext(ctx, "storefront.cart.updated", "sess-1", "session", "storefront", nil)
	require.NoError(t, err)
	assert.Equal(t, "corr-9", event.CorrelationID)
}

func TestEvent_WithMetadata_Chains(t *testing.T) {
	event := &Event{}
	result := event.WithMetadata("k1", "v1").WithMetadata("k2", "v2")

	assert.Same(t, event, result)
	assert.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, event.Metadata)
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{broken json`))
	require.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront.order.submitted", Topic("order", "submitted"))
	assert.Equal(t, "storefront.cart.updated", Topic("cart", "updated"))
}

// --- Producer tests ---

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092"})

	assert.Equal(t, []string{"broker1:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish_WritesKeyedMessage(t *testing.T) {
	w := &captureWriter{}
	p := NewProducer(DefaultProducerConfig(nil), nil)
	p.writer = w

	event, err := NewEvent("storefront.order.submitted", "sess-42", "session", "storefront", map[string]int{"items": 2})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(context.Background(), "storefront.order.submitted", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "storefront.order.submitted", msg.Topic)
	assert.Equal(t, "sess-42", string(msg.Key))

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "storefront.order.submitted", carrier.Get("event_type"))
	assert.Equal(t, "storefront", carrier.Get("source"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_WriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("leader not available")}
	p := NewProducer(DefaultProducerConfig(nil), nil)
	p.writer = w

	event, err := NewEvent("storefront.cart.updated", "sess-1", "session", "storefront", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "storefront.cart.updated", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to storefront.cart.updated")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestProducer_Close(t *testing.T) {
	w := &captureWriter{}
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	p.writer = w

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducer_DoesNotConnect(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

// --- HeaderCarrier tests ---

func TestHeaderCarrier_SetGetKeys(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Equal(t, "", c.Get("missing"))

	c.Set("traceparent", "00-abc-def-01")
	c.Set("existing", "v2")

	assert.Equal(t, "v2", c.Get("existing"))
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.ElementsMatch(t, []string{"existing", "traceparent"}, c.Keys())
	assert.Len(t, headers, 2)
}
