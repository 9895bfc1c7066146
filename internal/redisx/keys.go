package redisx

import "time"

const (
	// Idempotent order placement: idem:order:create:{member_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%d:%s"

	// Ordered amount per member and day: orders:daily:{member_id}:{yyyymmdd} -> amount
	KeyDailyTotal = "orders:daily:%d:%s"

	// Dedup of event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDailyTotal  = 26 * time.Hour
	TTLDedup       = 48 * time.Hour
)
