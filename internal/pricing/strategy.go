// Package pricing holds the discount and shipping strategies and the
// best-for-customer selection over them. Strategies are pure functions of
// the order and may be evaluated any number of times.
package pricing

import (
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type DiscountStrategy interface {
	Name() string
	Applicable(o *orders.Order) bool
	Discount(o *orders.Order) int64
}

type ShippingStrategy interface {
	Name() string
	Applicable(o *orders.Order) bool
	Cost(o *orders.Order) int64
	EstimatedDays(o *orders.Order) int
}

// Selection is the outcome of evaluating a strategy set.
type Selection struct {
	Policy string
	Amount int64
	Days   int
}

const NoDiscount = "none"

// SelectDiscount keeps the applicable strategy with the largest discount.
// Ties go to the strategy registered first. The result never exceeds the
// order total.
func SelectDiscount(strategies []DiscountStrategy, o *orders.Order) Selection {
	best := Selection{Policy: NoDiscount}
	for _, s := range strategies {
		if !s.Applicable(o) {
			continue
		}
		if d := s.Discount(o); d > best.Amount {
			best = Selection{Policy: s.Name(), Amount: d}
		}
	}
	if best.Amount > o.TotalAmount {
		best.Amount = o.TotalAmount
	}
	return best
}

// SelectShipping keeps the cheapest applicable strategy whose estimate is
// within maxDays. maxDays <= 0 means no ceiling. Ties go to the strategy
// registered first.
func SelectShipping(strategies []ShippingStrategy, o *orders.Order, maxDays int) (Selection, error) {
	var best Selection
	found := false
	for _, s := range strategies {
		if !s.Applicable(o) {
			continue
		}
		days := s.EstimatedDays(o)
		if maxDays > 0 && days > maxDays {
			continue
		}
		cost := s.Cost(o)
		if !found || cost < best.Amount {
			best = Selection{Policy: s.Name(), Amount: cost, Days: days}
			found = true
		}
	}
	if !found {
		return Selection{}, orders.Validation("shipping", fmt.Sprintf("no shipping option delivers within %d days", maxDays))
	}
	return best, nil
}
