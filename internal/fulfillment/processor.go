// Package fulfillment turns a validated order request into a persisted,
// priced and optionally paid order, and reverses it on cancellation.
package fulfillment

import (
	"context"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-order-fulfillment/internal/fulfillment")

// Processor is the seven-stage order algorithm. Tiers differ by type, not
// by overriding a base.
type Processor interface {
	Name() string
	ValidateRequest(ctx context.Context, req *orders.CreateOrderRequest) error
	ReserveInventory(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error
	CreateOrder(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) (*orders.Order, error)
	ApplyDiscount(ctx context.Context, o *orders.Order) error
	CalculateShipping(ctx context.Context, o *orders.Order) error
	// ChargePayment returns the stored payment. A non-nil payment with an
	// error means money moved and must be reversed.
	ChargePayment(ctx context.Context, tx orders.Tx, o *orders.Order, req *orders.CreateOrderRequest) (*orders.Payment, error)
	Finalize(ctx context.Context, tx orders.Tx, o *orders.Order) error
}

type Result struct {
	Order   *orders.Order
	Payment *orders.Payment
}

// Charged reports whether the result holds a completed gateway charge.
func (r Result) Charged() bool {
	return r.Payment != nil && r.Payment.TransactionID != ""
}

// Process runs the stages in order and stops at the first failure. Nothing
// is undone here; the caller's unit of work rolls back.
func Process(ctx context.Context, p Processor, tx orders.Tx, req *orders.CreateOrderRequest) (Result, error) {
	var res Result

	stage := func(name string, fn func(ctx context.Context) error) error {
		ctx, span := tracer.Start(ctx, "stage."+name)
		defer span.End()
		span.SetAttributes(attribute.String("processor", p.Name()))

		start := time.Now()
		err := fn(ctx)
		metrics.ObserveStage(p.Name(), name, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}

	if err := stage("validate", func(ctx context.Context) error {
		return p.ValidateRequest(ctx, req)
	}); err != nil {
		return res, err
	}
	if err := stage("reserve", func(ctx context.Context) error {
		return p.ReserveInventory(ctx, tx, req)
	}); err != nil {
		return res, err
	}
	if err := stage("create", func(ctx context.Context) error {
		o, err := p.CreateOrder(ctx, tx, req)
		res.Order = o
		return err
	}); err != nil {
		return res, err
	}
	if err := stage("discount", func(ctx context.Context) error {
		return p.ApplyDiscount(ctx, res.Order)
	}); err != nil {
		return res, err
	}
	if err := stage("shipping", func(ctx context.Context) error {
		return p.CalculateShipping(ctx, res.Order)
	}); err != nil {
		return res, err
	}
	if err := stage("payment", func(ctx context.Context) error {
		pay, err := p.ChargePayment(ctx, tx, res.Order, req)
		res.Payment = pay
		return err
	}); err != nil {
		return res, err
	}
	if err := stage("finalize", func(ctx context.Context) error {
		return p.Finalize(ctx, tx, res.Order)
	}); err != nil {
		return res, err
	}
	return res, nil
}
