package orders

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Each unit of work buffers its writes
// and applies them on commit; row locks are per-key semaphores with a wait
// bounded by LockTimeout.
type MemoryStore struct {
	LockTimeout time.Duration
	// BeforeCommit, when set, runs right before writes are applied. A
	// non-nil error aborts the commit.
	BeforeCommit func() error

	mu          sync.RWMutex
	members     map[int64]Member
	products    map[int64]Product
	orders      map[int64]Order
	payments    map[int64]Payment // by order id
	cart        map[int64]CartItem
	nextOrder   int64
	nextPayment int64

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		LockTimeout: 3 * time.Second,
		members:     map[int64]Member{},
		products:    map[int64]Product{},
		orders:      map[int64]Order{},
		payments:    map[int64]Payment{},
		cart:        map[int64]CartItem{},
		locks:       map[string]chan struct{}{},
		now:         time.Now,
	}
}

func (s *MemoryStore) PutMember(m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

// PutProduct seeds a product; its status follows its stock.
func (s *MemoryStore) PutProduct(p Product) {
	p.syncStatus()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryStore) PutCartItem(c CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart[c.ID] = c
}

func (s *MemoryStore) Product(id int64) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *MemoryStore) Order(id int64) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return cloneOrder(o), ok
}

func (s *MemoryStore) Payment(orderID int64) (Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[orderID]
	return p, ok
}

func (s *MemoryStore) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *MemoryStore) CartItem(id int64) (CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cart[id]
	return c, ok
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		s:           s,
		products:    map[int64]Product{},
		orders:      map[int64]Order{},
		payments:    map[int64]Payment{},
		cartDeleted: map[int64]bool{},
		held:        map[string]bool{},
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
	}
	s.apply(tx)
	return nil
}

func (s *MemoryStore) apply(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for orderID, p := range tx.payments {
		s.payments[orderID] = p
	}
	for id := range tx.cartDeleted {
		delete(s.cart, id)
	}
}

func (s *MemoryStore) lockChan(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

type memTx struct {
	s           *MemoryStore
	products    map[int64]Product
	orders      map[int64]Order
	payments    map[int64]Payment
	cartDeleted map[int64]bool
	held        map[string]bool
}

func (t *memTx) acquire(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	ch := t.s.lockChan(key)
	timer := time.NewTimer(t.s.LockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		t.held[key] = true
		return nil
	case <-timer.C:
		return Contention("lock "+key, nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *memTx) release() {
	for key := range t.held {
		<-t.s.lockChan(key)
	}
	t.held = nil
}

func productKey(id int64) string { return "product:" + strconv.FormatInt(id, 10) }
func orderKey(id int64) string   { return "order:" + strconv.FormatInt(id, 10) }
func memberKey(id int64) string  { return "member:" + strconv.FormatInt(id, 10) }
func cartKey(id int64) string    { return "cart:" + strconv.FormatInt(id, 10) }

func (t *memTx) GetMember(_ context.Context, id int64) (Member, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	m, ok := t.s.members[id]
	if !ok {
		return Member{}, NotFound("member", id)
	}
	return m, nil
}

func (t *memTx) LockMember(ctx context.Context, id int64) (Member, error) {
	if _, err := t.GetMember(ctx, id); err != nil {
		return Member{}, err
	}
	if err := t.acquire(ctx, memberKey(id)); err != nil {
		return Member{}, err
	}
	return t.GetMember(ctx, id)
}

func (t *memTx) GetProduct(_ context.Context, id int64) (Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	p, ok := t.s.products[id]
	if !ok {
		return Product{}, NotFound("product", id)
	}
	return p, nil
}

func (t *memTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	// existence first so unknown ids do not create lock entries
	if _, err := t.GetProduct(ctx, id); err != nil {
		return Product{}, err
	}
	if err := t.acquire(ctx, productKey(id)); err != nil {
		return Product{}, err
	}
	return t.GetProduct(ctx, id)
}

func (t *memTx) SaveStock(_ context.Context, p Product) error {
	if !t.held[productKey(p.ID)] {
		return fmt.Errorf("product %d saved without lock", p.ID)
	}
	if p.Stock < 0 {
		return InsufficientStock(p.ID, -p.Stock, 0)
	}
	p.UpdatedAt = t.s.now()
	t.products[p.ID] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	t.s.mu.Lock()
	t.s.nextOrder++
	o.ID = t.s.nextOrder
	t.s.mu.Unlock()

	now := t.s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	t.held[orderKey(o.ID)] = true
	t.s.lockChan(orderKey(o.ID)) <- struct{}{}
	t.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o *Order) error {
	if _, err := t.GetOrder(ctx, o.ID); err != nil {
		return err
	}
	o.UpdatedAt = t.s.now()
	t.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *memTx) GetOrder(_ context.Context, id int64) (Order, error) {
	if o, ok := t.orders[id]; ok {
		return cloneOrder(o), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	o, ok := t.s.orders[id]
	if !ok {
		return Order{}, NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	if _, err := t.GetOrder(ctx, id); err != nil {
		return Order{}, err
	}
	if err := t.acquire(ctx, orderKey(id)); err != nil {
		return Order{}, err
	}
	return t.GetOrder(ctx, id)
}

func (t *memTx) visibleOrders() map[int64]Order {
	t.s.mu.RLock()
	out := make(map[int64]Order, len(t.s.orders)+len(t.orders))
	for id, o := range t.s.orders {
		out[id] = o
	}
	t.s.mu.RUnlock()
	for id, o := range t.orders {
		out[id] = o
	}
	return out
}

func (t *memTx) ListOrders(_ context.Context, memberID int64, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range t.visibleOrders() {
		if o.MemberID == memberID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) DailyOrderTotal(_ context.Context, memberID int64, day time.Time) (int64, error) {
	y, m, d := day.Date()
	var total int64
	for _, o := range t.visibleOrders() {
		if o.MemberID != memberID || o.Status == StatusCanceled {
			continue
		}
		oy, om, od := o.CreatedAt.In(day.Location()).Date()
		if oy == y && om == m && od == d {
			total += o.TotalAmount
		}
	}
	return total, nil
}

func (t *memTx) InsertPayment(ctx context.Context, p *Payment) error {
	if _, err := t.GetPaymentByOrder(ctx, p.OrderID); err == nil {
		return fmt.Errorf("payment for order %d already exists", p.OrderID)
	}
	t.s.mu.Lock()
	t.s.nextPayment++
	p.ID = t.s.nextPayment
	t.s.mu.Unlock()

	p.CreatedAt = t.s.now()
	t.payments[p.OrderID] = *p
	return nil
}

func (t *memTx) UpdatePayment(ctx context.Context, p *Payment) error {
	cur, err := t.GetPaymentByOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if cur.ID != p.ID {
		return NotFound("payment", p.ID)
	}
	t.payments[p.OrderID] = *p
	return nil
}

func (t *memTx) GetPaymentByOrder(_ context.Context, orderID int64) (Payment, error) {
	if p, ok := t.payments[orderID]; ok {
		return p, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	p, ok := t.s.payments[orderID]
	if !ok {
		return Payment{}, NotFound("payment for order", orderID)
	}
	return p, nil
}

func (t *memTx) LockCartItems(ctx context.Context, ids []int64) ([]CartItem, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if _, ok := t.s.CartItem(id); !ok || t.cartDeleted[id] {
			return nil, NotFound("cart item", id)
		}
		if err := t.acquire(ctx, cartKey(id)); err != nil {
			return nil, err
		}
	}

	// re-read under the locks; a concurrent order may have removed them
	out := make([]CartItem, 0, len(ids))
	for _, id := range ids {
		c, ok := t.s.CartItem(id)
		if !ok || t.cartDeleted[id] {
			return nil, NotFound("cart item", id)
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *memTx) DeleteCartItems(_ context.Context, ids []int64) error {
	for _, id := range ids {
		if _, ok := t.s.CartItem(id); !ok || t.cartDeleted[id] {
			return NotFound("cart item", id)
		}
	}
	for _, id := range ids {
		t.cartDeleted[id] = true
	}
	return nil
}

func cloneOrder(o Order) Order {
	if o.Items != nil {
		o.Items = append([]LineItem(nil), o.Items...)
	}
	return o
}
