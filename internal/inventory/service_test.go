package inventory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

func setupInventoryTest(t *testing.T) (*Store, *orders.MemoryStore) {
	t.Helper()
	mem := orders.NewMemoryStore()
	mem.LockTimeout = 2 * time.Second
	mem.PutProduct(orders.Product{ID: 1, Name: "Keyboard", Price: 10000, Stock: 5})
	mem.PutProduct(orders.Product{ID: 2, Name: "Mouse", Price: 5000, Stock: 1})
	return NewStore(zaptest.NewLogger(t)), mem
}

func stock(t *testing.T, mem *orders.MemoryStore, id int64) int {
	t.Helper()
	p, ok := mem.Product(id)
	require.True(t, ok)
	return p.Stock
}

func TestStore_DecreaseAndIncrease(t *testing.T) {
	inv, mem := setupInventoryTest(t)
	ctx := context.Background()

	err := mem.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		p, err := inv.Decrease(ctx, tx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)

		p, err = inv.Increase(ctx, tx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, stock(t, mem, 1))
}

func TestStore_DecreaseToZeroMarksSoldOut(t *testing.T) {
	inv, mem := setupInventoryTest(t)
	err := mem.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		_, err := inv.Decrease(ctx, tx, 2, 1)
		return err
	})
	require.NoError(t, err)
	p, _ := mem.Product(2)
	assert.Equal(t, orders.ProductSoldOut, p.Status)
}

func TestStore_ReserveAllIsAllOrNothing(t *testing.T) {
	inv, mem := setupInventoryTest(t)
	err := mem.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		return inv.ReserveAll(ctx, tx, []Line{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 2},
		})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Equal(t, 5, stock(t, mem, 1))
	assert.Equal(t, 1, stock(t, mem, 2))
}

func TestStore_RestockAll(t *testing.T) {
	inv, mem := setupInventoryTest(t)
	err := mem.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		return inv.RestockAll(ctx, tx, []Line{
			{ProductID: 2, Quantity: 1},
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 7, stock(t, mem, 1))
	assert.Equal(t, 5, stock(t, mem, 2))
}

func TestConsolidate(t *testing.T) {
	got := Consolidate([]Line{
		{ProductID: 9, Quantity: 1},
		{ProductID: 3, Quantity: 2},
		{ProductID: 9, Quantity: 4},
	})
	assert.Equal(t, []Line{{ProductID: 3, Quantity: 2}, {ProductID: 9, Quantity: 5}}, got)
}

func TestLinesOf(t *testing.T) {
	got := LinesOf([]orders.LineItem{{ProductID: 1, Quantity: 2, UnitPrice: 100}})
	assert.Equal(t, []Line{{ProductID: 1, Quantity: 2}}, got)
}

func TestStore_ConcurrentReservationsStayNonNegative(t *testing.T) {
	inv, mem := setupInventoryTest(t)
	ctx := context.Background()

	var ok atomic.Int64
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			err := mem.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
				return inv.ReserveAll(ctx, tx, []Line{{ProductID: 1, Quantity: 1}})
			})
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, orders.ErrInsufficientStock) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(5), ok.Load())
	assert.Equal(t, 0, stock(t, mem, 1))
}
