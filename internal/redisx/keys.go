package redisx

import "time"

const (
	// Latest polled order list: staff:orders:snapshot -> poller.Snapshot JSON
	KeyOrdersSnapshot = "staff:orders:snapshot"

	// Revoked session tokens: session:revoked:{jti} -> "1"
	KeySessionRevoked = "session:revoked:%s"

	// Menu products per category: staff:menu:{category_id} -> []orders.Product JSON
	KeyMenu = "staff:menu:%s"

	// Dedup of consumed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSnapshot = 10 * time.Minute
	TTLMenu     = 5 * time.Minute
	TTLDedup    = 48 * time.Hour
)
