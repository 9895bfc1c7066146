package fulfillment

import (
	"context"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/pricing"
	"go.uber.org/zap"
)

// PremiumMaxDeliveryDays is the slowest shipping option a premium order may
// be given.
const PremiumMaxDeliveryDays = 20

// Premium holds stock per product in id order, and only ships within
// PremiumMaxDeliveryDays.
type Premium struct {
	s       stages
	maxDays int
}

func NewPremium(inv *inventory.Store, reg *pricing.Registry, gw payment.Gateway, logger *zap.Logger) *Premium {
	return &Premium{
		s:       stages{inventory: inv, pricing: reg, gateway: gw, logger: logger.Named("premium")},
		maxDays: PremiumMaxDeliveryDays,
	}
}

func (p *Premium) Name() string { return "premium" }

func (p *Premium) ValidateRequest(_ context.Context, req *orders.CreateOrderRequest) error {
	if err := checkShape(req); err != nil {
		return err
	}
	if req.ShippingAddress == "" {
		return orders.Validation("request", "shipping address is required")
	}
	if req.PhoneNumber == "" {
		return orders.Validation("request", "premium orders need a contact phone number")
	}
	return nil
}

func (p *Premium) ReserveInventory(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error {
	lines := inventory.Consolidate(requestLines(req))
	for _, l := range lines {
		p.s.logger.Debug("holding stock", zap.Int64("product_id", l.ProductID), zap.Int("quantity", l.Quantity))
	}
	return p.s.inventory.ReserveAll(ctx, tx, lines)
}

func (p *Premium) CreateOrder(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) (*orders.Order, error) {
	o, err := p.s.createOrder(ctx, tx, req, true)
	if err != nil {
		return nil, err
	}
	p.s.logger.Info("order created", zap.Int64("order_id", o.ID), zap.Int64("total", o.TotalAmount))
	return o, nil
}

func (p *Premium) ApplyDiscount(_ context.Context, o *orders.Order) error {
	sel := p.s.applyDiscount(o)
	p.s.logger.Info("discount applied", zap.String("policy", sel.Policy), zap.Int64("amount", sel.Amount))
	return nil
}

func (p *Premium) CalculateShipping(_ context.Context, o *orders.Order) error {
	sel, err := p.s.calculateShipping(o, p.maxDays)
	if err != nil {
		return err
	}
	p.s.logger.Info("shipping selected", zap.String("policy", sel.Policy), zap.Int64("cost", sel.Amount), zap.Int("days", sel.Days))
	return nil
}

func (p *Premium) ChargePayment(ctx context.Context, tx orders.Tx, o *orders.Order, req *orders.CreateOrderRequest) (*orders.Payment, error) {
	pay, err := p.s.chargePayment(ctx, tx, o, req)
	if err == nil {
		p.s.logger.Info("payment recorded", zap.Int64("order_id", o.ID), zap.Int64("amount", pay.Amount), zap.String("status", string(pay.Status)))
	}
	return pay, err
}

func (p *Premium) Finalize(ctx context.Context, tx orders.Tx, o *orders.Order) error {
	return p.s.finalize(ctx, tx, o)
}
