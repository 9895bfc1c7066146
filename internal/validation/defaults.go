package validation

import (
	"time"

	"go.uber.org/zap"
)

type Limits struct {
	DailyLimit     int64
	MaxQuantity    int
	MinOrderAmount int64
	MaxOrderAmount int64
	PointBalance   int64
	Maintenance    Window
	StrictMethods  bool
}

func DefaultLimits() Limits {
	return Limits{
		DailyLimit:     3_000_000,
		MaxQuantity:    100,
		MinOrderAmount: 1000,
		MaxOrderAmount: 0, // no per-order cap unless configured
		PointBalance:   50_000,
		Maintenance:    Window{Start: 0, End: time.Hour},
	}
}

// Standard builds the member, product, payment chain. totals may be nil to
// read daily totals from the store.
func Standard(logger *zap.Logger, l Limits, totals DailyTotals, now func() time.Time) *Chain {
	return NewChain(logger,
		MemberValidator{DailyLimit: l.DailyLimit, Totals: totals, Now: now},
		ProductValidator{MaxQuantity: l.MaxQuantity},
		PaymentValidator{
			MinOrderAmount: l.MinOrderAmount,
			MaxOrderAmount: l.MaxOrderAmount,
			Points:         StaticPoints(l.PointBalance),
			Maintenance:    l.Maintenance,
			StrictMethods:  l.StrictMethods,
			Now:            now,
			Logger:         logger,
		},
	)
}
