package pricing

import "github.com/ariefcatur/go-order-fulfillment/internal/orders"

// RateDiscount takes Percent of the total once the total reaches MinTotal.
// With PremiumOnly set it applies to premium orders only.
type RateDiscount struct {
	Label       string
	Percent     int64
	MinTotal    int64
	PremiumOnly bool
}

func (d RateDiscount) Name() string { return d.Label }

func (d RateDiscount) Applicable(o *orders.Order) bool {
	if d.PremiumOnly && !o.Premium {
		return false
	}
	return o.TotalAmount >= d.MinTotal
}

func (d RateDiscount) Discount(o *orders.Order) int64 {
	return o.TotalAmount * d.Percent / 100
}

// FixedDiscount takes a flat Amount off orders of at least MinTotal.
type FixedDiscount struct {
	Label    string
	Amount   int64
	MinTotal int64
}

func (d FixedDiscount) Name() string { return d.Label }

func (d FixedDiscount) Applicable(o *orders.Order) bool { return o.TotalAmount >= d.MinTotal }

func (d FixedDiscount) Discount(*orders.Order) int64 { return d.Amount }
