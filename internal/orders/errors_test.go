package orders

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindAndCause(t *testing.T) {
	stock := InsufficientStock(3, 6, 5)
	rejected := Rejection("product", "not enough stock", stock)

	assert.ErrorIs(t, rejected, ErrValidation)
	assert.ErrorIs(t, rejected, ErrInsufficientStock)
	assert.NotErrorIs(t, rejected, ErrNotFound)

	wrapped := fmt.Errorf("place order: %w", rejected)
	var de *Error
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "product", de.Source)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "member: not found: id=7", NotFound("member", 7).Error())
	assert.Equal(t, "payment: validation failed: amount too small",
		Validation("payment", "amount too small").Error())

	cause := errors.New("pool closed")
	assert.Equal(t, "lock product:1: contention: lock wait timed out: pool closed",
		Contention("lock product:1", cause).Error())
}

func TestReasonAndRetryable(t *testing.T) {
	assert.Equal(t, "requested 6, available 5", Reason(Validation("product", "requested 6, available 5")))
	assert.Equal(t, "boom", Reason(errors.New("boom")))

	assert.True(t, Retryable(Contention("lock", nil)))
	assert.True(t, Retryable(fmt.Errorf("tx: %w", Contention("lock", nil))))
	assert.False(t, Retryable(Validation("x", "y")))
	assert.False(t, Retryable(Inconsistent("reversed", nil)))
}
