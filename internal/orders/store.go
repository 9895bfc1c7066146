package orders

import (
	"context"
	"time"
)

// Tx is one unit of work. Lock* methods take an exclusive row lock held
// until the unit of work ends; a lock wait that times out returns an
// ErrContention error.
type Tx interface {
	GetMember(ctx context.Context, id int64) (Member, error)
	// LockMember serializes the orders of one member, so daily totals read
	// under it stay valid until commit.
	LockMember(ctx context.Context, id int64) (Member, error)

	GetProduct(ctx context.Context, id int64) (Product, error)
	LockProduct(ctx context.Context, id int64) (Product, error)
	// SaveStock writes stock and status of a product locked in this Tx.
	SaveStock(ctx context.Context, p Product) error

	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	LockOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, memberID int64, limit, offset int) ([]Order, error)
	// DailyOrderTotal sums non-canceled orders of memberID created on day.
	DailyOrderTotal(ctx context.Context, memberID int64, day time.Time) (int64, error)

	InsertPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	GetPaymentByOrder(ctx context.Context, orderID int64) (Payment, error)

	// LockCartItems returns the items in request order; any missing id is
	// NotFound.
	LockCartItems(ctx context.Context, ids []int64) ([]CartItem, error)
	// DeleteCartItems fails with NotFound unless every id is removed.
	DeleteCartItems(ctx context.Context, ids []int64) error
}

// Store runs fn inside a read-committed unit of work. It commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
