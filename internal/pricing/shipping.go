package pricing

import "github.com/ariefcatur/go-order-fulfillment/internal/orders"

// MinTotal on a shipping strategy limits it to orders of at least that
// total; zero offers it to every order.

// EconomyShipping is slow and cheap, free above FreeFrom.
type EconomyShipping struct {
	Fee      int64
	FreeFrom int64
	Days     int
	MinTotal int64
}

func (EconomyShipping) Name() string { return "economy" }

func (s EconomyShipping) Applicable(o *orders.Order) bool { return o.TotalAmount >= s.MinTotal }

func (s EconomyShipping) Cost(o *orders.Order) int64 {
	if o.TotalAmount >= s.FreeFrom {
		return 0
	}
	return s.Fee
}

func (s EconomyShipping) EstimatedDays(*orders.Order) int { return s.Days }

type ExpressShipping struct {
	Fee      int64
	Days     int
	MinTotal int64
}

func (ExpressShipping) Name() string { return "express" }

func (s ExpressShipping) Applicable(o *orders.Order) bool { return o.TotalAmount >= s.MinTotal }

func (s ExpressShipping) Cost(*orders.Order) int64 { return s.Fee }

func (s ExpressShipping) EstimatedDays(*orders.Order) int { return s.Days }

// StandardShipping ships faster once the total reaches FastFrom; the slow
// lane is free.
type StandardShipping struct {
	Fee      int64
	FastFrom int64
	FastDays int
	SlowDays int
	MinTotal int64
}

func (StandardShipping) Name() string { return "standard" }

func (s StandardShipping) Applicable(o *orders.Order) bool { return o.TotalAmount >= s.MinTotal }

func (s StandardShipping) Cost(o *orders.Order) int64 {
	if s.EstimatedDays(o) == s.SlowDays {
		return 0
	}
	return s.Fee
}

func (s StandardShipping) EstimatedDays(o *orders.Order) int {
	if o.TotalAmount >= s.FastFrom {
		return s.FastDays
	}
	return s.SlowDays
}

// FixedShipping is a carrier with a constant fee and estimate.
type FixedShipping struct {
	Label    string
	Fee      int64
	Days     int
	MinTotal int64
}

func (s FixedShipping) Name() string { return s.Label }

func (s FixedShipping) Applicable(o *orders.Order) bool { return o.TotalAmount >= s.MinTotal }

func (s FixedShipping) Cost(*orders.Order) int64 { return s.Fee }

func (s FixedShipping) EstimatedDays(*orders.Order) int { return s.Days }
