package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/pricing"
	"go.uber.org/zap"
)

// stages holds what both tiers share. Each tier keeps one and calls the
// helpers below from its own stage methods.
type stages struct {
	inventory *inventory.Store
	pricing   *pricing.Registry
	gateway   payment.Gateway
	logger    *zap.Logger
}

func checkShape(req *orders.CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return orders.Validation("request", "order has no items")
	}
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return orders.Validation("request", fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
	}
	if req.PayNow && req.PaymentMethod == "" {
		return orders.Validation("request", "payment method is required to pay now")
	}
	return nil
}

func requestLines(req *orders.CreateOrderRequest) []inventory.Line {
	out := make([]inventory.Line, 0, len(req.Items))
	for _, it := range req.Items {
		out = append(out, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// createOrder persists a CREATED order. Unit prices come from the catalog
// row, which reservation has already locked.
func (s stages) createOrder(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest, premium bool) (*orders.Order, error) {
	o := &orders.Order{
		MemberID:        req.MemberID,
		Status:          orders.StatusCreated,
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		Premium:         premium,
		Items:           make([]orders.LineItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		p, err := tx.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, orders.LineItem{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
	}
	o.TotalAmount = o.ItemsTotal()

	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s stages) applyDiscount(o *orders.Order) pricing.Selection {
	sel := pricing.SelectDiscount(s.pricing.Discounts, o)
	o.DiscountAmount = sel.Amount
	o.DiscountPolicy = sel.Policy
	return sel
}

func (s stages) calculateShipping(o *orders.Order, maxDays int) (pricing.Selection, error) {
	sel, err := pricing.SelectShipping(s.pricing.Shipping, o, maxDays)
	if err != nil {
		return sel, err
	}
	o.ShippingCost = sel.Amount
	o.ShippingPolicy = sel.Policy
	return sel, nil
}

// chargePayment stores the order's payment. With PayNow the gateway is
// charged and the order moves to PAID; otherwise the payment stays PENDING.
func (s stages) chargePayment(ctx context.Context, tx orders.Tx, o *orders.Order, req *orders.CreateOrderRequest) (*orders.Payment, error) {
	pay := &orders.Payment{
		OrderID: o.ID,
		Method:  req.PaymentMethod,
		Status:  orders.PaymentPending,
		Amount:  o.Payable(),
	}
	if pay.Amount < 0 {
		return nil, orders.Validation("payment", "payable amount is negative")
	}

	if req.PayNow {
		rec, err := s.gateway.Charge(ctx, payment.ChargeRequest{
			OrderID:  o.ID,
			MemberID: o.MemberID,
			Method:   req.PaymentMethod,
			Amount:   pay.Amount,
		})
		if errors.Is(err, payment.ErrDeclined) {
			return nil, orders.InsufficientFunds("payment declined", err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to charge payment: %w", err)
		}

		paidAt := rec.PaidAt
		pay.TransactionID = rec.TransactionID
		pay.PaidAt = &paidAt
		if err := pay.Transition(orders.PaymentCompleted); err != nil {
			return pay, err
		}

		if err := o.Transition(orders.StatusPaid); err != nil {
			return pay, err
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return pay, err
		}
	}

	if err := tx.InsertPayment(ctx, pay); err != nil {
		if pay.TransactionID != "" {
			return pay, err
		}
		return nil, err
	}
	return pay, nil
}

func (s stages) finalize(ctx context.Context, tx orders.Tx, o *orders.Order) error {
	if err := o.Transition(orders.StatusConfirmed); err != nil {
		return err
	}
	return tx.UpdateOrder(ctx, o)
}
