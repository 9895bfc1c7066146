package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusPaid, true},
		{StatusCreated, StatusConfirmed, true},
		{StatusCreated, StatusCanceled, true},
		{StatusPaid, StatusConfirmed, true},
		{StatusPaid, StatusCanceled, true},
		{StatusConfirmed, StatusCanceled, true},
		{StatusPaid, StatusCreated, false},
		{StatusConfirmed, StatusPaid, false},
		{StatusCanceled, StatusCreated, false},
		{StatusCanceled, StatusCanceled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrder_TransitionLeavesStatusOnFailure(t *testing.T) {
	o := Order{Status: StatusCanceled}
	err := o.Transition(StatusPaid)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StatusCanceled, o.Status)

	o = Order{Status: StatusCreated}
	assert.NoError(t, o.Transition(StatusPaid))
	assert.Equal(t, StatusPaid, o.Status)
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentCompleted))
	assert.True(t, CanTransitionPayment(PaymentCompleted, PaymentCanceled))
	assert.True(t, CanTransitionPayment(PaymentCompleted, PaymentRefunded))
	assert.False(t, CanTransitionPayment(PaymentPending, PaymentCanceled))
	assert.False(t, CanTransitionPayment(PaymentCanceled, PaymentCompleted))
}

func TestPayment_Transition(t *testing.T) {
	p := &Payment{Status: PaymentPending}
	require.NoError(t, p.Transition(PaymentCompleted))
	require.NoError(t, p.Transition(PaymentCanceled))
	assert.Equal(t, PaymentCanceled, p.Status)

	err := p.Transition(PaymentCompleted)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, PaymentCanceled, p.Status, "a refused move leaves the status")

	pending := &Payment{Status: PaymentPending}
	assert.ErrorIs(t, pending.Transition(PaymentRefunded), ErrValidation)
}
