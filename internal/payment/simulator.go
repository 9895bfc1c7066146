package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/google/uuid"
)

type methodRule struct {
	prefix string
	limit  int64
	fee    func(amount int64) int64
}

var rules = map[orders.PaymentMethod]methodRule{
	orders.MethodCard:           {prefix: "CD", limit: 5_000_000, fee: func(a int64) int64 { return a * 3 / 100 }},
	orders.MethodBankTransfer:   {prefix: "BT", limit: 10_000_000, fee: func(int64) int64 { return 500 }},
	orders.MethodVirtualAccount: {prefix: "VA", limit: 10_000_000, fee: func(int64) int64 { return 300 }},
	orders.MethodPoint:          {prefix: "PT", limit: 1_000_000, fee: func(int64) int64 { return 0 }},
}

// Simulator is an in-process gateway. It keeps its own ledger so reversals
// of unknown or already reversed transactions fail.
type Simulator struct {
	mu     sync.Mutex
	ledger map[string]int64
	now    func() time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{ledger: map[string]int64{}, now: time.Now}
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	rule, ok := rules[req.Method]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: method %q not supported", ErrDeclined, req.Method)
	}
	if req.Amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}
	if req.Amount > rule.limit {
		return Receipt{}, fmt.Errorf("%w: amount %d exceeds the %s limit of %d", ErrDeclined, req.Amount, req.Method, rule.limit)
	}

	txID := rule.prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
	s.mu.Lock()
	s.ledger[txID] = req.Amount
	s.mu.Unlock()

	return Receipt{
		TransactionID: txID,
		Amount:        req.Amount,
		Fee:           rule.fee(req.Amount),
		PaidAt:        s.now(),
	}, nil
}

func (s *Simulator) Reverse(ctx context.Context, transactionID string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	charged, ok := s.ledger[transactionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}
	if amount != charged {
		return fmt.Errorf("reverse %s: amount %d does not match charged %d", transactionID, amount, charged)
	}
	delete(s.ledger, transactionID)
	return nil
}

// Outstanding reports whether a transaction is charged and not reversed.
func (s *Simulator) Outstanding(transactionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ledger[transactionID]
	return ok
}
