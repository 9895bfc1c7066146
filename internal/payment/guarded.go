package payment

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"go.uber.org/zap"
)

// Guarded puts a circuit breaker in front of a Gateway. Business declines
// pass through without counting as breaker failures.
type Guarded struct {
	next    Gateway
	breaker *CircuitBreaker
	logger  *zap.Logger
}

func NewGuarded(next Gateway, breaker *CircuitBreaker, logger *zap.Logger) *Guarded {
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	var rec Receipt
	var declined error
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		r, err := g.next.Charge(ctx, req)
		if errors.Is(err, ErrDeclined) {
			declined = err
			return nil
		}
		rec = r
		return err
	})
	switch {
	case declined != nil:
		metrics.RecordPayment("charge", "declined")
		return Receipt{}, declined
	case err != nil:
		metrics.RecordPayment("charge", "error")
		g.logger.Warn("payment charge failed",
			zap.Int64("order_id", req.OrderID),
			zap.String("gateway", g.next.Name()),
			zap.String("breaker", g.breaker.GetState().String()),
			zap.Error(err),
		)
		return Receipt{}, err
	}
	metrics.RecordPayment("charge", "ok")
	return rec, nil
}

func (g *Guarded) Reverse(ctx context.Context, transactionID string, amount int64) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Reverse(ctx, transactionID, amount)
	})
	if err != nil {
		metrics.RecordPayment("reverse", "error")
		g.logger.Warn("payment reversal failed",
			zap.String("transaction_id", transactionID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return err
	}
	metrics.RecordPayment("reverse", "ok")
	return nil
}
