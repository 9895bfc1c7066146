package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Store. Product and order locks are
// SELECT ... FOR UPDATE row locks bounded by LockTimeout.
type PGStore struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

func (s *PGStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.LockTimeout > 0 {
		// SET LOCAL does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError("commit", err)
	}
	return nil
}

// Postgres error codes that mean "try again".
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return Contention(op, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

type pgTx struct{ tx pgx.Tx }

const memberCols = `id, email, name, role, deleted`

func (t *pgTx) scanMember(ctx context.Context, op, query string, id int64) (Member, error) {
	var m Member
	var role string
	err := t.tx.QueryRow(ctx, query, id).Scan(&m.ID, &m.Email, &m.Name, &role, &m.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, NotFound("member", id)
	}
	if err != nil {
		return Member{}, mapPgError(op, err)
	}
	m.Role = Role(role)
	return m, nil
}

func (t *pgTx) GetMember(ctx context.Context, id int64) (Member, error) {
	return t.scanMember(ctx, "get member", `SELECT `+memberCols+` FROM members WHERE id=$1`, id)
}

func (t *pgTx) LockMember(ctx context.Context, id int64) (Member, error) {
	return t.scanMember(ctx, "lock member", `SELECT `+memberCols+` FROM members WHERE id=$1 FOR UPDATE`, id)
}

const productCols = `id, name, price, stock, status, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &status, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	p.Status = ProductStatus(status)
	return p, nil
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, NotFound("product", id)
	}
	if err != nil {
		return Product{}, mapPgError("get product", err)
	}
	return p, nil
}

func (t *pgTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, NotFound("product", id)
	}
	if err != nil {
		return Product{}, mapPgError("lock product", err)
	}
	return p, nil
}

func (t *pgTx) SaveStock(ctx context.Context, p Product) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock=$2, status=$3, updated_at=now()
		WHERE id=$1 AND $2 >= 0`, p.ID, p.Stock, string(p.Status))
	if err != nil {
		return mapPgError("save stock", err)
	}
	if ct.RowsAffected() != 1 {
		return NotFound("product", p.ID)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(member_id, status, total_amount, discount_amount, shipping_cost,
		                   discount_policy, shipping_policy, shipping_address, phone_number, premium)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		o.MemberID, string(o.Status), o.TotalAmount, o.DiscountAmount, o.ShippingCost,
		o.DiscountPolicy, o.ShippingPolicy, o.ShippingAddress, o.PhoneNumber, o.Premium,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapPgError("insert order", err)
	}

	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4)`,
			o.ID, it.ProductID, it.Quantity, it.UnitPrice,
		); err != nil {
			return mapPgError("insert order item", err)
		}
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, total_amount=$3, discount_amount=$4, shipping_cost=$5,
		       discount_policy=$6, shipping_policy=$7, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		o.ID, string(o.Status), o.TotalAmount, o.DiscountAmount, o.ShippingCost,
		o.DiscountPolicy, o.ShippingPolicy,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("order", o.ID)
	}
	if err != nil {
		return mapPgError("update order", err)
	}
	return nil
}

const orderCols = `id, member_id, status, total_amount, discount_amount, shipping_cost,
	discount_policy, shipping_policy, shipping_address, phone_number, premium, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.MemberID, &status, &o.TotalAmount, &o.DiscountAmount, &o.ShippingCost,
		&o.DiscountPolicy, &o.ShippingPolicy, &o.ShippingAddress, &o.PhoneNumber, &o.Premium,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (Order, error) {
	return t.loadOrder(ctx, id, `SELECT `+orderCols+` FROM orders WHERE id=$1`)
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	return t.loadOrder(ctx, id, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`)
}

func (t *pgTx) loadOrder(ctx context.Context, id int64, query string) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, NotFound("order", id)
	}
	if err != nil {
		return Order{}, mapPgError("get order", err)
	}
	if o.Items, err = t.items(ctx, id); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (t *pgTx) items(ctx context.Context, orderID int64) ([]LineItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT product_id, quantity, unit_price FROM order_items
		WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, mapPgError("list order items", err)
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *pgTx) ListOrders(ctx context.Context, memberID int64, limit, offset int) ([]Order, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE member_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, memberID, limit, offset)
	if err != nil {
		return nil, mapPgError("list orders", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) DailyOrderTotal(ctx context.Context, memberID int64, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var total int64
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0) FROM orders
		WHERE member_id=$1 AND status <> 'CANCELED' AND created_at >= $2 AND created_at < $3`,
		memberID, start, start.AddDate(0, 0, 1)).Scan(&total)
	if err != nil {
		return 0, mapPgError("sum daily orders", err)
	}
	return total, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *Payment) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments(order_id, method, status, amount, transaction_id, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		p.OrderID, string(p.Method), string(p.Status), p.Amount, p.TransactionID, p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return mapPgError("insert payment", err)
	}
	return nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *Payment) error {
	ct, err := t.tx.Exec(ctx, `UPDATE payments SET status=$2, paid_at=$3 WHERE id=$1`,
		p.ID, string(p.Status), p.PaidAt)
	if err != nil {
		return mapPgError("update payment", err)
	}
	if ct.RowsAffected() != 1 {
		return NotFound("payment", p.ID)
	}
	return nil
}

func (t *pgTx) GetPaymentByOrder(ctx context.Context, orderID int64) (Payment, error) {
	var p Payment
	var method, status string
	err := t.tx.QueryRow(ctx, `
		SELECT id, order_id, method, status, amount, transaction_id, paid_at, created_at
		FROM payments WHERE order_id=$1`, orderID).
		Scan(&p.ID, &p.OrderID, &method, &status, &p.Amount, &p.TransactionID, &p.PaidAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, NotFound("payment for order", orderID)
	}
	if err != nil {
		return Payment{}, mapPgError("get payment", err)
	}
	p.Method = PaymentMethod(method)
	p.Status = PaymentStatus(status)
	return p, nil
}

func (t *pgTx) LockCartItems(ctx context.Context, ids []int64) ([]CartItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, member_id, product_id, quantity FROM cart_items
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, mapPgError("lock cart items", err)
	}
	defer rows.Close()

	byID := make(map[int64]CartItem, len(ids))
	for rows.Next() {
		var c CartItem
		if err := rows.Scan(&c.ID, &c.MemberID, &c.ProductID, &c.Quantity); err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// keep request order; missing ids are NotFound
	out := make([]CartItem, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, NotFound("cart item", id)
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *pgTx) DeleteCartItems(ctx context.Context, ids []int64) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return mapPgError("delete cart items", err)
	}
	if n := ct.RowsAffected(); n != int64(len(ids)) {
		return &Error{Kind: ErrNotFound, Source: "cart item",
			Reason: fmt.Sprintf("%d of %d cart items already gone", int64(len(ids))-n, len(ids))}
	}
	return nil
}
