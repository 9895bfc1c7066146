package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/notify"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Idempotency maps a client key to the order it produced.
type Idempotency interface {
	Lookup(ctx context.Context, memberID int64, key string) (orderID int64, ok bool, err error)
	Remember(ctx context.Context, memberID int64, key string, orderID int64) error
}

// TotalsRecorder keeps a cached daily total per member. Add runs while the
// member lock is held; Forget drops the entry when it may be too low.
type TotalsRecorder interface {
	Add(ctx context.Context, memberID int64, day time.Time, delta int64) error
	Forget(ctx context.Context, memberID int64, day time.Time) error
}

type Deps struct {
	Store     orders.Store
	Chain     *validation.Chain
	Regular   Processor
	Premium   Processor
	Tier      TierSelector
	Inventory *inventory.Store
	Gateway   payment.Gateway
	Notifier  notify.Notifier
	// optional
	Idempotency Idempotency
	Totals      TotalsRecorder

	MaxRetries int
	Backoff    time.Duration
}

type Service struct {
	d      Deps
	logger *zap.Logger
}

func NewService(d Deps, logger *zap.Logger) *Service {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Backoff <= 0 {
		d.Backoff = 50 * time.Millisecond
	}
	if d.MaxRetries < 0 {
		d.MaxRetries = 0
	}
	return &Service{d: d, logger: logger}
}

func (s *Service) processorFor(memberID int64) Processor {
	if s.d.Tier.Premium(memberID) {
		return s.d.Premium
	}
	return s.d.Regular
}

// PlaceOrder runs the chain and the processor stages in one unit of work.
// On failure any charge already made is reversed before returning.
func (s *Service) PlaceOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.Order, error) {
	proc := s.processorFor(req.MemberID)
	ctx, span := tracer.Start(ctx, "fulfillment.PlaceOrder", trace.WithAttributes(
		attribute.Int64("member_id", req.MemberID),
		attribute.String("processor", proc.Name()),
	))
	defer span.End()

	if req.IdempotencyKey != "" && s.d.Idempotency != nil {
		id, ok, err := s.d.Idempotency.Lookup(ctx, req.MemberID, req.IdempotencyKey)
		if err != nil {
			s.logger.Warn("idempotency lookup failed", zap.Error(err))
		} else if ok {
			s.logger.Info("replaying idempotent order", zap.Int64("order_id", id))
			return s.GetOrder(ctx, id, req.MemberID)
		}
	}

	var res Result
	err := s.withRetry(ctx, "place_order", func() error {
		r := req
		res = Result{}
		cached := false
		err := s.d.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			if err := resolveItems(ctx, tx, &r); err != nil {
				return err
			}
			if err := s.d.Chain.Run(ctx, tx, &r); err != nil {
				return err
			}
			var err error
			if res, err = Process(ctx, proc, tx, &r); err != nil {
				return err
			}
			if r.FromCart() {
				if err := tx.DeleteCartItems(ctx, r.CartItemIDs); err != nil {
					return err
				}
			}
			cached = s.addToTotal(ctx, res.Order)
			return nil
		})
		if err != nil && cached {
			s.forgetTotal(ctx, res.Order)
		}
		if err != nil && res.Charged() {
			err = s.reverseCharge(ctx, res, err)
		}
		return err
	})
	if err != nil {
		metrics.RecordOrderPlaced(proc.Name(), outcome(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFailure("place order failed", err, zap.Int64("member_id", req.MemberID))
		return nil, err
	}

	o := res.Order
	metrics.RecordOrderPlaced(proc.Name(), "ok")
	span.SetAttributes(attribute.Int64("order_id", o.ID), attribute.Int64("payable", o.Payable()))
	s.logger.Info("order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("member_id", o.MemberID),
		zap.String("processor", proc.Name()),
		zap.String("status", string(o.Status)),
		zap.Int64("total", o.TotalAmount),
		zap.Int64("discount", o.DiscountAmount),
		zap.Int64("shipping", o.ShippingCost),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	s.d.Notifier.OrderCreated(ctx, o)
	if res.Payment != nil && res.Payment.Status == orders.PaymentCompleted {
		s.d.Notifier.OrderPaid(ctx, o, *res.Payment)
	}
	if req.IdempotencyKey != "" && s.d.Idempotency != nil {
		if err := s.d.Idempotency.Remember(ctx, o.MemberID, req.IdempotencyKey, o.ID); err != nil {
			s.logger.Warn("idempotency store failed", zap.Error(err))
		}
	}
	return o, nil
}

// addToTotal counts o in the cached daily total before commit, while the
// member lock keeps other orders of the member waiting. It reports whether
// the cache may have been touched.
func (s *Service) addToTotal(ctx context.Context, o *orders.Order) bool {
	if s.d.Totals == nil {
		return false
	}
	if err := s.d.Totals.Add(ctx, o.MemberID, o.CreatedAt, o.TotalAmount); err != nil {
		s.logger.Warn("daily total cache update failed", zap.Int64("member_id", o.MemberID), zap.Error(err))
		// a missed increment would let the next order under-read
		s.forgetTotal(ctx, o)
	}
	return true
}

// forgetTotal drops the cached daily total so the next read reloads it from
// the store.
func (s *Service) forgetTotal(ctx context.Context, o *orders.Order) {
	if s.d.Totals == nil || o == nil {
		return
	}
	if err := s.d.Totals.Forget(context.WithoutCancel(ctx), o.MemberID, o.CreatedAt); err != nil {
		s.logger.Warn("daily total cache invalidation failed", zap.Int64("member_id", o.MemberID), zap.Error(err))
	}
}

// resolveItems turns cart item ids into lines at the current catalog price.
func resolveItems(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error {
	switch {
	case req.FromCart() && len(req.Items) > 0:
		return orders.Validation("request", "order either cart items or explicit items, not both")
	case !req.FromCart():
		if len(req.Items) == 0 {
			return orders.Validation("request", "no items to order")
		}
		return nil
	}

	seen := make(map[int64]bool, len(req.CartItemIDs))
	for _, id := range req.CartItemIDs {
		if seen[id] {
			return orders.Validation("request", fmt.Sprintf("cart item %d listed twice", id))
		}
		seen[id] = true
	}

	cart, err := tx.LockCartItems(ctx, req.CartItemIDs)
	if err != nil {
		return err
	}
	items := make([]orders.ItemRequest, 0, len(cart))
	for _, c := range cart {
		if c.MemberID != req.MemberID {
			return orders.Denied("cart", fmt.Sprintf("cart item %d belongs to another member", c.ID))
		}
		p, err := tx.GetProduct(ctx, c.ProductID)
		if err != nil {
			return err
		}
		items = append(items, orders.ItemRequest{
			ProductID:   p.ID,
			Quantity:    c.Quantity,
			ProductName: p.Name,
			Price:       p.Price,
		})
	}
	req.Items = items
	return nil
}

// reverseCharge undoes a gateway charge whose unit of work did not commit.
func (s *Service) reverseCharge(ctx context.Context, res Result, cause error) error {
	pay := res.Payment
	if err := s.d.Gateway.Reverse(context.WithoutCancel(ctx), pay.TransactionID, pay.Amount); err != nil {
		s.logger.Error("charge left without order",
			zap.String("transaction_id", pay.TransactionID),
			zap.Int64("amount", pay.Amount),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return orders.Inconsistent(
			fmt.Sprintf("payment %s charged but order rolled back and reversal failed", pay.TransactionID),
			errors.Join(cause, err))
	}
	s.logger.Info("charge reversed after rollback", zap.String("transaction_id", pay.TransactionID))
	return cause
}

// CancelOrder restocks every line, cancels the payment and the order in one
// unit of work. Only orders with a completed payment can be canceled.
func (s *Service) CancelOrder(ctx context.Context, req orders.CancelRequest) (*orders.Order, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.CancelOrder", trace.WithAttributes(
		attribute.Int64("order_id", req.OrderID),
		attribute.Int64("member_id", req.MemberID),
	))
	defer span.End()

	var o orders.Order
	var pay orders.Payment
	err := s.withRetry(ctx, "cancel_order", func() error {
		reversed := false
		err := s.d.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			var err error
			if o, err = tx.LockOrder(ctx, req.OrderID); err != nil {
				return err
			}
			if o.MemberID != req.MemberID {
				return orders.Denied("cancel", "order belongs to another member")
			}
			if o.Status == orders.StatusCanceled {
				return orders.Validation("cancel", "order is already canceled")
			}
			if pay, err = tx.GetPaymentByOrder(ctx, o.ID); err != nil {
				return err
			}
			if pay.Status != orders.PaymentCompleted {
				return orders.Validation("cancel",
					fmt.Sprintf("payment is %s; only completed payments can be canceled", pay.Status))
			}

			if err := s.d.Inventory.RestockAll(ctx, tx, inventory.LinesOf(o.Items)); err != nil {
				return err
			}
			if err := o.Transition(orders.StatusCanceled); err != nil {
				return err
			}
			if err := tx.UpdateOrder(ctx, &o); err != nil {
				return err
			}
			if err := pay.Transition(orders.PaymentCanceled); err != nil {
				return err
			}
			if err := tx.UpdatePayment(ctx, &pay); err != nil {
				return err
			}

			// last step: a failure here still rolls everything back cleanly
			if err := s.d.Gateway.Reverse(ctx, pay.TransactionID, pay.Amount); err != nil {
				return fmt.Errorf("failed to reverse payment: %w", err)
			}
			reversed = true
			return nil
		})
		if err != nil && reversed {
			s.logger.Error("payment reversed but cancellation did not commit",
				zap.Int64("order_id", req.OrderID),
				zap.String("transaction_id", pay.TransactionID),
				zap.Error(err),
			)
			return orders.Inconsistent("payment reversed but cancellation did not commit", err)
		}
		return err
	})
	if err != nil {
		metrics.RecordCancellation(outcome(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFailure("cancel order failed", err, zap.Int64("order_id", req.OrderID))
		return nil, err
	}

	metrics.RecordCancellation("ok")
	s.logger.Info("order canceled",
		zap.Int64("order_id", o.ID),
		zap.Int64("refund", pay.Amount),
		zap.String("reason", req.Reason),
	)
	s.d.Notifier.OrderCanceled(ctx, &o, req.Reason, pay.Amount)
	s.forgetTotal(ctx, &o)
	return &o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID, memberID int64) (*orders.Order, error) {
	var o orders.Order
	err := s.d.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if o.MemberID != memberID {
		return nil, orders.Denied("order", "order belongs to another member")
	}
	return &o, nil
}

func (s *Service) ListOrders(ctx context.Context, memberID int64, limit, offset int) ([]orders.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var out []orders.Order
	err := s.d.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := tx.GetMember(ctx, memberID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListOrders(ctx, memberID, limit, offset)
		return err
	})
	return out, err
}

// withRetry repeats fn while it fails with contention, up to MaxRetries
// extra attempts.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !orders.Retryable(err) || attempt >= s.d.MaxRetries {
			return err
		}
		metrics.RecordRetry(op)
		s.logger.Info("retrying after contention", zap.String("operation", op), zap.Int("attempt", attempt+1), zap.Error(err))

		t := time.NewTimer(s.d.Backoff * time.Duration(attempt+1))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case errors.Is(err, orders.ErrInconsistent):
		s.logger.Error(msg, fields...)
	case errors.Is(err, orders.ErrValidation), errors.Is(err, orders.ErrNotFound),
		errors.Is(err, orders.ErrAuthorization), errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInsufficientFunds):
		s.logger.Info(msg, fields...)
	default:
		s.logger.Warn(msg, fields...)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, orders.ErrInconsistent):
		return "inconsistent"
	case errors.Is(err, orders.ErrContention):
		return "contention"
	case errors.Is(err, orders.ErrValidation):
		return "rejected"
	case errors.Is(err, orders.ErrNotFound):
		return "not_found"
	case errors.Is(err, orders.ErrAuthorization):
		return "denied"
	case errors.Is(err, orders.ErrInsufficientStock):
		return "out_of_stock"
	case errors.Is(err, orders.ErrInsufficientFunds):
		return "declined"
	}
	return "error"
}
