package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type fakePublisher struct {
	mu   sync.Mutex
	full bool
	msgs []published
}

func (f *fakePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.msgs = append(f.msgs, published{topic: topic, key: key, value: value, headers: headers})
	return true
}

func header(hs []kafkago.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func tracedContext(t *testing.T) (context.Context, trace.SpanContext) {
	t.Helper()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

func sampleOrder() *orders.Order {
	return &orders.Order{
		ID:              42,
		MemberID:        1,
		Status:          orders.StatusConfirmed,
		Items:           []orders.LineItem{{ProductID: 1, Quantity: 3, UnitPrice: 10000}},
		TotalAmount:     30000,
		DiscountAmount:  1000,
		ShippingAddress: "Jl. Sudirman 1, Jakarta 10220",
	}
}

func TestKafka_OrderCreated(t *testing.T) {
	pub := &fakePublisher{}
	k := NewKafka(pub, "order-api", zaptest.NewLogger(t))
	k.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ctx, sc := tracedContext(t)

	k.OrderCreated(ctx, sampleOrder())

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, orders.TopicOrderCreated, msg.topic)
	assert.Equal(t, []byte("42"), msg.key)
	assert.Equal(t, orders.EventOrderCreated, header(msg.headers, "x-event-type"))
	assert.Equal(t, "1", header(msg.headers, "x-event-version"))
	assert.Contains(t, header(msg.headers, "traceparent"), sc.TraceID().String())

	var env orders.Envelope
	require.NoError(t, kafkax.UnmarshalEnvelope(msg.value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, orders.EventOrderCreated, env.EventType)
	assert.Equal(t, "order-api", env.Producer)
	assert.Equal(t, "42", env.CorrelationID)
	assert.Equal(t, sc.TraceID().String(), env.TraceID)

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), p.TotalAmount)
	assert.Equal(t, int64(1000), p.DiscountAmount)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 3, p.Items[0].Quantity)
}

func TestKafka_PaidAndCanceledTopics(t *testing.T) {
	pub := &fakePublisher{}
	k := NewKafka(pub, "order-api", zaptest.NewLogger(t))
	o := sampleOrder()

	k.OrderPaid(context.Background(), o, orders.Payment{Method: orders.MethodCard, Amount: 29000, TransactionID: "CD-1"})
	k.OrderCanceled(context.Background(), o, "changed my mind", 29000)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, orders.TopicOrderPaid, pub.msgs[0].topic)
	assert.Equal(t, orders.TopicOrderCanceled, pub.msgs[1].topic)

	var env orders.Envelope
	require.NoError(t, kafkax.UnmarshalEnvelope(pub.msgs[1].value, &env))
	assert.Empty(t, env.TraceID, "no span in context")
	p, err := kafkax.UnwrapPayload[orders.OrderCanceledPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "changed my mind", p.Reason)
	assert.Equal(t, int64(29000), p.Refund)
}

func TestKafka_FullInboxDropsSilently(t *testing.T) {
	pub := &fakePublisher{full: true}
	k := NewKafka(pub, "order-api", zaptest.NewLogger(t))

	assert.NotPanics(t, func() { k.OrderCreated(context.Background(), sampleOrder()) })
	assert.Empty(t, pub.msgs)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	o := sampleOrder()
	r.OrderCreated(context.Background(), o)
	r.OrderCanceled(context.Background(), o, "late", 29000)

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, Event{Type: orders.EventOrderCreated, OrderID: 42, Status: orders.StatusConfirmed, Amount: 29000}, events[0])
	assert.Equal(t, "late", events[1].Reason)
}
