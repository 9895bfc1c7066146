package validation

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type ProductValidator struct {
	MaxQuantity int
}

func (ProductValidator) Name() string { return "product" }

// Validate checks every line against the catalog. Stock is read without a
// lock here; reservation re-checks it under the row lock.
func (v ProductValidator) Validate(ctx context.Context, tx orders.Tx, req *orders.CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return orders.Validation(v.Name(), "order has no items")
	}
	for i, it := range req.Items {
		if it.ProductID < 0 {
			return orders.Validation(v.Name(), fmt.Sprintf("item %d: invalid product id %d", i, it.ProductID))
		}
		if it.Quantity <= 0 {
			return orders.Validation(v.Name(), fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
		if it.Quantity > v.MaxQuantity {
			return orders.Validation(v.Name(),
				fmt.Sprintf("item %d: quantity %d exceeds the maximum of %d", i, it.Quantity, v.MaxQuantity))
		}

		p, err := tx.GetProduct(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if p.Price != it.Price {
			return orders.Validation(v.Name(),
				fmt.Sprintf("product %d: price changed from %d to %d", p.ID, it.Price, p.Price))
		}
		if it.Quantity > p.Stock {
			return orders.Rejection(v.Name(),
				fmt.Sprintf("product %d: insufficient stock, requested %d, available %d", p.ID, it.Quantity, p.Stock),
				orders.ErrInsufficientStock)
		}
	}
	return nil
}
