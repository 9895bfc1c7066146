package shipping

import (
	"context"
	"errors"
	"regexp"
	"sync"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-order-fulfillment/internal/shipping")

// Deduper marks event ids as handled. redisx.Dedup implements it.
type Deduper interface {
	First(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Registrar books a shipment for every created order and cancels it when
// the order is canceled.
type Registrar struct {
	Carrier      Carrier
	Dedup        Deduper
	Sender       Party
	GramsPerUnit int

	logger *zap.Logger

	mu       sync.Mutex
	tracking map[int64]string
}

func NewRegistrar(carrier Carrier, dedup Deduper, sender Party, logger *zap.Logger) *Registrar {
	return &Registrar{
		Carrier:      carrier,
		Dedup:        dedup,
		Sender:       sender,
		GramsPerUnit: 500,
		logger:       logger,
		tracking:     make(map[int64]string),
	}
}

// Tracking returns the tracking number registered for an order.
func (r *Registrar) Tracking(orderID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracking[orderID]
	return t, ok
}

// Handle is installed as the consumer handler.
func (r *Registrar) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		r.logger.Warn("dropping undecodable event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderCreated && env.EventType != orders.EventOrderCanceled {
		return nil
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, kafkax.HeaderCarrier{Headers: &m.Headers})
	ctx, span := tracer.Start(ctx, "shipping."+env.EventType)
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", env.EventID),
		attribute.String("order.id", env.CorrelationID),
	)

	first, err := r.Dedup.First(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		r.logger.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		err = r.register(ctx, env)
	case orders.EventOrderCanceled:
		err = r.cancel(ctx, env)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ferr := r.Dedup.Forget(ctx, env.EventID); ferr != nil {
			r.logger.Warn("failed to release dedup mark", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return err
	}
	return nil
}

func (r *Registrar) register(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	units := 0
	for _, it := range p.Items {
		units += it.Quantity
	}
	weight := units * r.GramsPerUnit

	req := Request{
		OrderID: p.OrderID,
		Sender:  r.Sender,
		Receiver: Party{
			Phone:   p.PhoneNumber,
			Address: p.ShippingAddress,
			ZipCode: ZipCode(p.ShippingAddress),
		},
		WeightGrams: weight,
		Package:     packageFor(weight),
		Express:     p.Premium,
	}
	resp, err := r.Carrier.Register(ctx, req)
	if err != nil {
		metrics.RecordShipment(r.Carrier.Name(), "register", "error")
		return err
	}
	metrics.RecordShipment(r.Carrier.Name(), "register", "ok")

	r.mu.Lock()
	r.tracking[p.OrderID] = resp.TrackingNumber
	r.mu.Unlock()

	r.logger.Info("shipment registered",
		zap.Int64("order_id", p.OrderID),
		zap.String("tracking", resp.TrackingNumber),
		zap.Int64("cost", resp.Cost),
		zap.Time("eta", resp.EstimatedDelivery),
	)
	return nil
}

func (r *Registrar) cancel(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCanceledPayload](env.Payload)
	if err != nil {
		return err
	}

	tracking, ok := r.Tracking(p.OrderID)
	if !ok {
		r.logger.Info("no shipment to cancel", zap.Int64("order_id", p.OrderID))
		return nil
	}
	if _, err := r.Carrier.Cancel(ctx, tracking, p.Reason); err != nil {
		metrics.RecordShipment(r.Carrier.Name(), "cancel", "error")
		if errors.Is(err, ErrNotCancelable) {
			// picked-up parcels go through returns, retrying won't help
			r.logger.Warn("shipment already on its way", zap.Int64("order_id", p.OrderID), zap.String("tracking", tracking))
			return nil
		}
		return err
	}
	metrics.RecordShipment(r.Carrier.Name(), "cancel", "ok")

	r.mu.Lock()
	delete(r.tracking, p.OrderID)
	r.mu.Unlock()
	return nil
}

var zipPattern = regexp.MustCompile(`\b\d{5}\b`)

// ZipCode picks the last five-digit group out of a free-form address.
func ZipCode(address string) string {
	all := zipPattern.FindAllString(address, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

func packageFor(weightGrams int) PackageType {
	switch {
	case weightGrams <= 500:
		return PackageEnvelope
	case weightGrams <= 2000:
		return PackageBag
	default:
		return PackageBox
	}
}
