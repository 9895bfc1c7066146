// Package notify publishes order facts to downstream consumers. Publishing
// never blocks or fails the caller.
package notify

import (
	"context"
	"sync"
	"time"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Notifier interface {
	OrderCreated(ctx context.Context, o *orders.Order)
	OrderPaid(ctx context.Context, o *orders.Order, p orders.Payment)
	OrderCanceled(ctx context.Context, o *orders.Order, reason string, refund int64)
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) bool
}

type Kafka struct {
	pub     Publisher
	service string
	logger  *zap.Logger
	now     func() time.Time
}

func NewKafka(pub Publisher, service string, logger *zap.Logger) *Kafka {
	return &Kafka{pub: pub, service: service, logger: logger, now: time.Now}
}

func (k *Kafka) OrderCreated(ctx context.Context, o *orders.Order) {
	k.publish(ctx, orders.EventOrderCreated, o.ID, orders.CreatedPayload(o))
}

func (k *Kafka) OrderPaid(ctx context.Context, o *orders.Order, p orders.Payment) {
	k.publish(ctx, orders.EventOrderPaid, o.ID, orders.OrderPaidPayload{
		OrderID:       o.ID,
		Method:        p.Method,
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
	})
}

func (k *Kafka) OrderCanceled(ctx context.Context, o *orders.Order, reason string, refund int64) {
	k.publish(ctx, orders.EventOrderCanceled, o.ID, orders.CanceledPayload(o, reason, refund))
}

func (k *Kafka) publish(ctx context.Context, eventType string, orderID int64, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    k.now().UTC(),
		Producer:      k.service,
		CorrelationID: orders.PartitionKeyString(orderID),
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
	}

	headers := []kafkago.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}
	otel.GetTextMapPropagator().Inject(ctx, kafkax.HeaderCarrier{Headers: &headers})

	if !k.pub.Publish(orders.TopicFor(eventType), orders.PartitionKey(orderID), kafkax.MustMarshal(ev), headers...) {
		metrics.RecordEvent(eventType, "dropped")
		k.logger.Warn("event dropped, producer inbox full",
			zap.String("event_type", eventType),
			zap.Int64("order_id", orderID),
		)
		return
	}
	metrics.RecordEvent(eventType, "queued")
}

// Nop discards every event.
type Nop struct{}

func (Nop) OrderCreated(context.Context, *orders.Order)                 {}
func (Nop) OrderPaid(context.Context, *orders.Order, orders.Payment)    {}
func (Nop) OrderCanceled(context.Context, *orders.Order, string, int64) {}

// Event is what Recorder keeps per call.
type Event struct {
	Type    string
	OrderID int64
	Status  orders.Status
	Method  orders.PaymentMethod
	Reason  string
	Amount  int64
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OrderCreated(_ context.Context, o *orders.Order) {
	r.add(Event{Type: orders.EventOrderCreated, OrderID: o.ID, Status: o.Status, Amount: o.Payable()})
}

func (r *Recorder) OrderPaid(_ context.Context, o *orders.Order, p orders.Payment) {
	r.add(Event{Type: orders.EventOrderPaid, OrderID: o.ID, Status: o.Status, Method: p.Method, Amount: p.Amount})
}

func (r *Recorder) OrderCanceled(_ context.Context, o *orders.Order, reason string, refund int64) {
	r.add(Event{Type: orders.EventOrderCanceled, OrderID: o.ID, Status: o.Status, Reason: reason, Amount: refund})
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
