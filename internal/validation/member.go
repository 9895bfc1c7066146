package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// CreditChecker is the hook for an external credit decision.
type CreditChecker interface {
	Approve(ctx context.Context, m orders.Member, amount int64) (bool, error)
}

// ApproveAll approves every member.
type ApproveAll struct{}

func (ApproveAll) Approve(context.Context, orders.Member, int64) (bool, error) { return true, nil }

// DailyTotals reports how much a member has already ordered on a day.
type DailyTotals interface {
	DailyTotal(ctx context.Context, tx orders.Tx, memberID int64, day time.Time) (int64, error)
}

// StoreTotals reads the daily total straight from the store.
type StoreTotals struct{}

func (StoreTotals) DailyTotal(ctx context.Context, tx orders.Tx, memberID int64, day time.Time) (int64, error) {
	return tx.DailyOrderTotal(ctx, memberID, day)
}

type MemberValidator struct {
	DailyLimit int64
	Credit     CreditChecker
	Totals     DailyTotals
	Now        func() time.Time
}

func (MemberValidator) Name() string { return "member" }

func (v MemberValidator) Validate(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error {
	// held until commit, so concurrent orders of one member see each other
	m, err := tx.LockMember(ctx, req.MemberID)
	if err != nil {
		return err
	}
	if m.Deleted {
		return orders.Validation(v.Name(), "member is deactivated")
	}
	if m.Role != orders.RoleCustomer {
		return orders.Validation(v.Name(), "only customers can place orders")
	}

	amount := req.Total()
	ok, err := v.credit().Approve(ctx, m, amount)
	if err != nil {
		return fmt.Errorf("failed to check credit: %w", err)
	}
	if !ok {
		return orders.Validation(v.Name(), "credit check declined")
	}

	today, err := v.totals().DailyTotal(ctx, tx, m.ID, v.now())
	if err != nil {
		return fmt.Errorf("failed to read daily total: %w", err)
	}
	if today+amount > v.DailyLimit {
		return orders.Validation(v.Name(),
			fmt.Sprintf("daily order limit exceeded: %d ordered today, %d requested, limit %d", today, amount, v.DailyLimit))
	}
	return nil
}

func (v MemberValidator) credit() CreditChecker {
	if v.Credit == nil {
		return ApproveAll{}
	}
	return v.Credit
}

func (v MemberValidator) totals() DailyTotals {
	if v.Totals == nil {
		return StoreTotals{}
	}
	return v.Totals
}

func (v MemberValidator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}
