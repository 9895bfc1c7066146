package payment

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var (
	ErrDeclined           = errors.New("payment declined")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

type ChargeRequest struct {
	OrderID  int64
	MemberID int64
	Method   orders.PaymentMethod
	Amount   int64
}

type Receipt struct {
	TransactionID string
	Amount        int64
	Fee           int64
	PaidAt        time.Time
}

// Gateway is the external payment capability.
type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
	Reverse(ctx context.Context, transactionID string, amount int64) error
}
