// Package validation runs the ordered, fail-fast eligibility checks an order
// request must pass before any stock or order row is touched.
package validation

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"go.uber.org/zap"
)

type Validator interface {
	Name() string
	Validate(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error
}

// Chain stops at the first failing validator and returns its reason.
type Chain struct {
	validators []Validator
	logger     *zap.Logger
}

func NewChain(logger *zap.Logger, validators ...Validator) *Chain {
	return &Chain{validators: validators, logger: logger}
}

func (c *Chain) Names() []string {
	out := make([]string, 0, len(c.validators))
	for _, v := range c.validators {
		out = append(out, v.Name())
	}
	return out
}

func (c *Chain) Run(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error {
	for _, v := range c.validators {
		err := v.Validate(ctx, tx, req)
		if err == nil {
			continue
		}
		err = attribute(v.Name(), err)
		if errors.Is(err, orders.ErrValidation) || errors.Is(err, orders.ErrNotFound) {
			c.logger.Info("order request rejected",
				zap.String("validator", v.Name()),
				zap.Int64("member_id", req.MemberID),
				zap.String("reason", orders.Reason(err)),
			)
		}
		return err
	}
	return nil
}

// attribute stamps the validator name on domain errors.
func attribute(name string, err error) error {
	var e *orders.Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	cp.Source = name
	return &cp
}
