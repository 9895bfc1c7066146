package fulfillment

import (
	"context"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/pricing"
	"go.uber.org/zap"
)

// Regular reserves each line as it comes and considers every shipping
// option.
type Regular struct {
	s stages
}

func NewRegular(inv *inventory.Store, reg *pricing.Registry, gw payment.Gateway, logger *zap.Logger) *Regular {
	return &Regular{s: stages{inventory: inv, pricing: reg, gateway: gw, logger: logger.Named("regular")}}
}

func (r *Regular) Name() string { return "regular" }

func (r *Regular) ValidateRequest(_ context.Context, req *orders.CreateOrderRequest) error {
	if err := checkShape(req); err != nil {
		return err
	}
	if req.ShippingAddress == "" {
		return orders.Validation("request", "shipping address is required")
	}
	return nil
}

func (r *Regular) ReserveInventory(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error {
	return r.s.inventory.ReserveAll(ctx, tx, requestLines(req))
}

func (r *Regular) CreateOrder(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) (*orders.Order, error) {
	o, err := r.s.createOrder(ctx, tx, req, false)
	if err != nil {
		return nil, err
	}
	r.s.logger.Info("order created", zap.Int64("order_id", o.ID), zap.Int64("total", o.TotalAmount))
	return o, nil
}

func (r *Regular) ApplyDiscount(_ context.Context, o *orders.Order) error {
	sel := r.s.applyDiscount(o)
	r.s.logger.Debug("discount applied", zap.String("policy", sel.Policy), zap.Int64("amount", sel.Amount))
	return nil
}

func (r *Regular) CalculateShipping(_ context.Context, o *orders.Order) error {
	sel, err := r.s.calculateShipping(o, 0)
	if err != nil {
		return err
	}
	r.s.logger.Debug("shipping selected", zap.String("policy", sel.Policy), zap.Int64("cost", sel.Amount), zap.Int("days", sel.Days))
	return nil
}

func (r *Regular) ChargePayment(ctx context.Context, tx orders.Tx, o *orders.Order, req *orders.CreateOrderRequest) (*orders.Payment, error) {
	return r.s.chargePayment(ctx, tx, o, req)
}

func (r *Regular) Finalize(ctx context.Context, tx orders.Tx, o *orders.Order) error {
	return r.s.finalize(ctx, tx, o)
}
