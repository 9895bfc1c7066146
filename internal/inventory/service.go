package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"go.uber.org/zap"
)

// Store mutates stock through row locks held by the caller's unit of work.
// Every read of stock that leads to a write happens after the lock.
type Store struct {
	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

type Line struct {
	ProductID int64
	Quantity  int
}

func (s *Store) Decrease(ctx context.Context, tx orders.Tx, productID int64, qty int) (orders.Product, error) {
	p, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return orders.Product{}, s.observe(err)
	}
	if err := p.DecreaseStock(qty); err != nil {
		return orders.Product{}, err
	}
	if err := tx.SaveStock(ctx, p); err != nil {
		return orders.Product{}, s.observe(err)
	}
	s.logger.Debug("stock decreased",
		zap.Int64("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}

func (s *Store) Increase(ctx context.Context, tx orders.Tx, productID int64, qty int) (orders.Product, error) {
	p, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return orders.Product{}, s.observe(err)
	}
	if err := p.IncreaseStock(qty); err != nil {
		return orders.Product{}, err
	}
	if err := tx.SaveStock(ctx, p); err != nil {
		return orders.Product{}, s.observe(err)
	}
	s.logger.Debug("stock increased",
		zap.Int64("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}

// ReserveAll decreases stock line by line in the given order. Any shortfall
// fails the whole call; the caller's rollback discards earlier lines.
func (s *Store) ReserveAll(ctx context.Context, tx orders.Tx, lines []Line) error {
	for _, l := range lines {
		if _, err := s.Decrease(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// RestockAll returns quantities to stock, locking products in ascending id
// order.
func (s *Store) RestockAll(ctx context.Context, tx orders.Tx, lines []Line) error {
	for _, l := range Consolidate(lines) {
		if _, err := s.Increase(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Consolidate merges lines per product and sorts them by product id, so
// concurrent callers take locks in the same order.
func Consolidate(lines []Line) []Line {
	byID := make(map[int64]int, len(lines))
	for _, l := range lines {
		byID[l.ProductID] += l.Quantity
	}
	out := make([]Line, 0, len(byID))
	for id, qty := range byID {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func LinesOf(items []orders.LineItem) []Line {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		out = append(out, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (s *Store) observe(err error) error {
	if errors.Is(err, orders.ErrContention) {
		metrics.RecordLockContention()
		s.logger.Warn("stock lock contention", zap.Error(err))
	}
	return err
}
