package pricing

import (
	"testing"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectDiscount_PicksLargest(t *testing.T) {
	o := &orders.Order{TotalAmount: 30000}
	got := SelectDiscount([]DiscountStrategy{
		FixedDiscount{Label: "small", Amount: 1000},
		RateDiscount{Label: "five-percent", Percent: 5},
	}, o)
	assert.Equal(t, "five-percent", got.Policy)
	assert.Equal(t, int64(1500), got.Amount)
}

func TestSelectDiscount_TieGoesToFirstRegistered(t *testing.T) {
	o := &orders.Order{TotalAmount: 20000}
	got := SelectDiscount([]DiscountStrategy{
		FixedDiscount{Label: "coupon", Amount: 1000},
		RateDiscount{Label: "rate", Percent: 5},
	}, o)
	assert.Equal(t, "coupon", got.Policy)
	assert.Equal(t, int64(1000), got.Amount)
}

func TestSelectDiscount_NoneApplicable(t *testing.T) {
	o := &orders.Order{TotalAmount: 5000}
	got := SelectDiscount([]DiscountStrategy{
		FixedDiscount{Label: "coupon", Amount: 1000, MinTotal: 30000},
		RateDiscount{Label: "vip", Percent: 10, PremiumOnly: true},
	}, o)
	assert.Equal(t, NoDiscount, got.Policy)
	assert.Zero(t, got.Amount)
}

func TestSelectDiscount_ClampedToTotal(t *testing.T) {
	o := &orders.Order{TotalAmount: 800}
	got := SelectDiscount([]DiscountStrategy{FixedDiscount{Label: "coupon", Amount: 1000}}, o)
	assert.Equal(t, int64(800), got.Amount)
}

func TestRateDiscount_PremiumOnly(t *testing.T) {
	d := RateDiscount{Label: "vip", Percent: 10, PremiumOnly: true}
	assert.False(t, d.Applicable(&orders.Order{TotalAmount: 50000}))
	assert.True(t, d.Applicable(&orders.Order{TotalAmount: 50000, Premium: true}))
	assert.Equal(t, int64(5000), d.Discount(&orders.Order{TotalAmount: 50000}))
}

func TestSelectShipping_CheapestWithinCeiling(t *testing.T) {
	o := &orders.Order{TotalAmount: 10000}
	strategies := []ShippingStrategy{
		FixedShipping{Label: "fast", Fee: 3000, Days: 5},
		FixedShipping{Label: "slow", Fee: 0, Days: 25},
	}

	got, err := SelectShipping(strategies, o, 20)
	require.NoError(t, err)
	assert.Equal(t, "fast", got.Policy)
	assert.Equal(t, int64(3000), got.Amount)
	assert.Equal(t, 5, got.Days)

	got, err = SelectShipping(strategies, o, 0)
	require.NoError(t, err)
	assert.Equal(t, "slow", got.Policy, "no ceiling picks the cheapest")
}

func TestSelectShipping_SkipsInapplicable(t *testing.T) {
	strategies := []ShippingStrategy{
		FixedShipping{Label: "bulk-freight", Fee: 0, Days: 4, MinTotal: 50000},
		ExpressShipping{Fee: 6000, Days: 1},
		EconomyShipping{Fee: 1500, FreeFrom: 100000, Days: 5, MinTotal: 20000},
	}
	tests := []struct {
		name    string
		total   int64
		maxDays int
		policy  string
		amount  int64
	}{
		{"small order only gets express", 10000, 0, "express", 6000},
		{"mid order adds economy", 30000, 0, "economy", 1500},
		{"large order reaches free freight", 60000, 0, "bulk-freight", 0},
		{"ceiling still applies", 60000, 3, "express", 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectShipping(strategies, &orders.Order{TotalAmount: tt.total}, tt.maxDays)
			require.NoError(t, err)
			assert.Equal(t, tt.policy, got.Policy)
			assert.Equal(t, tt.amount, got.Amount)
		})
	}

	_, err := SelectShipping([]ShippingStrategy{FixedShipping{Label: "bulk", Days: 2, MinTotal: 50000}}, &orders.Order{TotalAmount: 100}, 0)
	assert.ErrorIs(t, err, orders.ErrValidation, "no applicable option")
}

func TestSelectShipping_NothingQualifies(t *testing.T) {
	_, err := SelectShipping([]ShippingStrategy{FixedShipping{Label: "slow", Days: 25}}, &orders.Order{}, 20)
	assert.ErrorIs(t, err, orders.ErrValidation)
}

func TestShippingStrategies(t *testing.T) {
	small := &orders.Order{TotalAmount: 10000}
	large := &orders.Order{TotalAmount: 30000}

	eco := EconomyShipping{Fee: 1500, FreeFrom: 30000, Days: 5}
	assert.Equal(t, int64(1500), eco.Cost(small))
	assert.Equal(t, int64(0), eco.Cost(large))

	std := StandardShipping{Fee: 5000, FastFrom: 30000, FastDays: 3, SlowDays: 5}
	assert.Equal(t, 5, std.EstimatedDays(small))
	assert.Equal(t, int64(0), std.Cost(small))
	assert.Equal(t, 3, std.EstimatedDays(large))
	assert.Equal(t, int64(5000), std.Cost(large))

	exp := ExpressShipping{Fee: 6000, Days: 1}
	assert.Equal(t, int64(6000), exp.Cost(large))
	assert.Equal(t, 1, exp.EstimatedDays(large))
}
