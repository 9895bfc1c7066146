package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"go.uber.org/zap"
)

// PointBalances reports the spendable point balance of a member.
type PointBalances interface {
	Balance(ctx context.Context, memberID int64) (int64, error)
}

// StaticPoints gives every member the same balance.
type StaticPoints int64

func (p StaticPoints) Balance(context.Context, int64) (int64, error) { return int64(p), nil }

// Window is a daily time range, offsets from local midnight. End before
// Start wraps past midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

func (w Window) Contains(t time.Time) bool {
	if w.Start == w.End {
		return false
	}
	tod := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	if w.Start < w.End {
		return tod >= w.Start && tod < w.End
	}
	return tod >= w.Start || tod < w.End
}

type PaymentValidator struct {
	MinOrderAmount int64
	MaxOrderAmount int64 // 0 disables the cap
	Points         PointBalances
	Maintenance    Window
	// StrictMethods rejects payment methods this validator does not know.
	StrictMethods bool
	Now           func() time.Time
	Logger        *zap.Logger
}

func (PaymentValidator) Name() string { return "payment" }

func (v PaymentValidator) Validate(ctx context.Context, _ orders.Tx, req *orders.CreateOrderRequest) error {
	total := req.Total()
	if total < v.MinOrderAmount {
		return orders.Validation(v.Name(), fmt.Sprintf("order total %d is below the minimum of %d", total, v.MinOrderAmount))
	}
	if v.MaxOrderAmount > 0 && total > v.MaxOrderAmount {
		return orders.Validation(v.Name(), fmt.Sprintf("order total %d exceeds the maximum of %d", total, v.MaxOrderAmount))
	}
	if req.PaymentMethod == "" && !req.PayNow {
		return nil
	}

	switch req.PaymentMethod {
	case orders.MethodCard:
		// the floor above already covers cards
		return nil
	case orders.MethodVirtualAccount:
		return nil
	case orders.MethodPoint:
		if v.Points == nil {
			return orders.Validation(v.Name(), "point payments are not available")
		}
		balance, err := v.Points.Balance(ctx, req.MemberID)
		if err != nil {
			return fmt.Errorf("failed to read point balance: %w", err)
		}
		if total > balance {
			return orders.Rejection(v.Name(),
				fmt.Sprintf("point balance %d does not cover %d", balance, total), orders.ErrInsufficientFunds)
		}
		return nil
	case orders.MethodBankTransfer:
		if v.Maintenance.Contains(v.now()) {
			return orders.Validation(v.Name(), "bank transfer is under maintenance, try again later")
		}
		return nil
	}

	if v.StrictMethods {
		return orders.Validation(v.Name(), fmt.Sprintf("unsupported payment method %q", req.PaymentMethod))
	}
	// Unknown methods fall through unchecked.
	if v.Logger != nil {
		v.Logger.Warn("unrecognized payment method passed validation",
			zap.String("method", string(req.PaymentMethod)),
			zap.Int64("member_id", req.MemberID),
		)
	}
	return nil
}

func (v PaymentValidator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}
