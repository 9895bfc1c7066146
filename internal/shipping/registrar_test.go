package shipping

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) First(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

// countingCarrier wraps a carrier and can fail registration on demand.
type countingCarrier struct {
	Carrier
	registerErr error
	registered  []Request
}

func (c *countingCarrier) Register(ctx context.Context, req Request) (Response, error) {
	if c.registerErr != nil {
		return Response{}, c.registerErr
	}
	c.registered = append(c.registered, req)
	return c.Carrier.Register(ctx, req)
}

func setupRegistrarTest(t *testing.T) (*Registrar, *countingCarrier, *Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	api := NewStore()
	carrier := &countingCarrier{Carrier: NewParcelCarrier(api, logger)}
	r := NewRegistrar(carrier, &memDedup{seen: map[string]bool{}}, Party{Name: "Warehouse"}, logger)
	return r, carrier, api
}

func event(t *testing.T, id, eventType string, payload any) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:   id,
		EventType: eventType,
		Payload:   kafkax.MustMarshal(payload),
	}
	return kafkago.Message{Topic: orders.TopicFor(eventType), Value: kafkax.MustMarshal(env)}
}

func created(orderID int64, qty int, premium bool) orders.OrderCreatedPayload {
	return orders.OrderCreatedPayload{
		OrderID:         orderID,
		Premium:         premium,
		Items:           []orders.ItemPrice{{ProductID: 1, Quantity: qty, UnitPrice: 10000}},
		ShippingAddress: "Jl. Raya 3, Jayapura 99111",
		PhoneNumber:     "0812",
	}
}

func TestRegistrar_RegistersOncePerEvent(t *testing.T) {
	r, carrier, _ := setupRegistrarTest(t)
	ctx := context.Background()
	msg := event(t, "ev-1", orders.EventOrderCreated, created(5, 3, true))

	require.NoError(t, r.Handle(ctx, msg))
	require.NoError(t, r.Handle(ctx, msg), "redelivery is ignored")

	require.Len(t, carrier.registered, 1)
	req := carrier.registered[0]
	assert.Equal(t, 1500, req.WeightGrams)
	assert.Equal(t, PackageBag, req.Package)
	assert.Equal(t, "99111", req.Receiver.ZipCode)
	assert.True(t, req.Express)

	tracking, ok := r.Tracking(5)
	require.True(t, ok)
	assert.NotEmpty(t, tracking)
}

func TestRegistrar_FailureReleasesDedupMark(t *testing.T) {
	r, carrier, _ := setupRegistrarTest(t)
	ctx := context.Background()
	msg := event(t, "ev-2", orders.EventOrderCreated, created(6, 1, false))

	carrier.registerErr = errors.New("carrier offline")
	require.Error(t, r.Handle(ctx, msg))

	carrier.registerErr = nil
	require.NoError(t, r.Handle(ctx, msg), "retry after failure is processed")
	assert.Len(t, carrier.registered, 1)
}

func TestRegistrar_CancelsShipment(t *testing.T) {
	r, _, api := setupRegistrarTest(t)
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, event(t, "ev-3", orders.EventOrderCreated, created(8, 1, false))))
	tracking, _ := r.Tracking(8)

	require.NoError(t, r.Handle(ctx, event(t, "ev-4", orders.EventOrderCanceled, orders.OrderCanceledPayload{OrderID: 8, Reason: "changed my mind"})))
	_, ok := r.Tracking(8)
	assert.False(t, ok)
	assert.Equal(t, StatusCanceled, statusOf(api.tracking(tracking).DeliveryStatus))
}

func TestRegistrar_CancelAfterPickupIsNotRetried(t *testing.T) {
	r, _, api := setupRegistrarTest(t)
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, event(t, "ev-5", orders.EventOrderCreated, created(9, 1, false))))
	tracking, _ := r.Tracking(9)
	require.True(t, api.Advance(tracking))

	err := r.Handle(ctx, event(t, "ev-6", orders.EventOrderCanceled, orders.OrderCanceledPayload{OrderID: 9}))
	assert.NoError(t, err)
	_, ok := r.Tracking(9)
	assert.True(t, ok)
}

func TestRegistrar_IgnoresOtherEvents(t *testing.T) {
	r, carrier, _ := setupRegistrarTest(t)
	ctx := context.Background()

	assert.NoError(t, r.Handle(ctx, kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, r.Handle(ctx, event(t, "ev-7", orders.EventOrderPaid, orders.OrderPaidPayload{OrderID: 1})))
	assert.NoError(t, r.Handle(ctx, event(t, "ev-8", orders.EventOrderCanceled, orders.OrderCanceledPayload{OrderID: 404})))
	assert.Empty(t, carrier.registered)
}

func TestZipCode(t *testing.T) {
	assert.Equal(t, "10220", ZipCode("Jl. Sudirman 12345 Blok 1, Jakarta 10220"))
	assert.Equal(t, "63000", ZipCode("63000"))
	assert.Empty(t, ZipCode("no digits here, 1234"))
}

func TestPackageFor(t *testing.T) {
	assert.Equal(t, PackageEnvelope, packageFor(500))
	assert.Equal(t, PackageBag, packageFor(501))
	assert.Equal(t, PackageBag, packageFor(2000))
	assert.Equal(t, PackageBox, packageFor(2001))
}
