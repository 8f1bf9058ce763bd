package redisx

import "time"

const (
	// Order status cache: order_status:{order_id} -> status string
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
)
