package redisx

import "time"

const (
	// Cart contents: cart:{cart_id} -> hash of "document_id/line_id" => kg
	KeyCart = "cart:%s"

	// Sorted set of cart ids scored by expiry unix seconds.
	KeyCartDeadlines = "cart:deadlines"

	// Idempotency checkout: idem:order:create:{external_id} -> order_id
	KeyIdemCheckout = "idem:order:create:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
