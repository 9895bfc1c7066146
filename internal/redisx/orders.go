package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func DailyKey(memberID int64, day time.Time) string {
	return fmt.Sprintf(KeyDailyTotal, memberID, day.Format("20060102"))
}

// DailyTotals caches each member's ordered amount per day. A miss falls
// back to the store and seeds the cache; Add only adjusts keys that exist
// and Forget removes them.
type DailyTotals struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewDailyTotals(rdb *redis.Client, logger *zap.Logger) *DailyTotals {
	return &DailyTotals{rdb: rdb, logger: logger}
}

func (d *DailyTotals) DailyTotal(ctx context.Context, tx orders.Tx, memberID int64, day time.Time) (int64, error) {
	key := DailyKey(memberID, day)
	v, err := d.rdb.Get(ctx, key).Int64()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		d.logger.Warn("daily total cache read failed", zap.String("key", key), zap.Error(err))
	}

	total, err := tx.DailyOrderTotal(ctx, memberID, day)
	if err != nil {
		return 0, err
	}
	if err := d.rdb.SetNX(ctx, key, total, TTLDailyTotal).Err(); err != nil {
		d.logger.Warn("daily total cache seed failed", zap.String("key", key), zap.Error(err))
	}
	return total, nil
}

var incrIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('INCRBY', KEYS[1], ARGV[1])
end
return false
`)

func (d *DailyTotals) Add(ctx context.Context, memberID int64, day time.Time, delta int64) error {
	err := incrIfExists.Run(ctx, d.rdb, []string{DailyKey(memberID, day)}, delta).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to adjust daily total: %w", err)
	}
	return nil
}

// Forget drops the cached total; the next read seeds it from the store.
func (d *DailyTotals) Forget(ctx context.Context, memberID int64, day time.Time) error {
	if err := d.rdb.Del(ctx, DailyKey(memberID, day)).Err(); err != nil {
		return fmt.Errorf("failed to drop daily total: %w", err)
	}
	return nil
}

// Idempotency remembers which order a client key produced.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func (i *Idempotency) Lookup(ctx context.Context, memberID int64, key string) (int64, bool, error) {
	id, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, memberID, key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, memberID int64, key string, orderID int64) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, memberID, key), orderID, TTLIdempotency).Err()
}

// Dedup marks event ids as processed per service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// First reports whether eventID is seen for the first time, marking it.
func (d *Dedup) First(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, eventID), "1", TTLDedup).Result()
}

// Forget unmarks eventID so a failed attempt can be processed again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, eventID)).Err()
}
