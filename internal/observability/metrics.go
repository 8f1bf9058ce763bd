package observability

// Metric names shared between the composition root and instrumented code.
const (
	MCheckoutRequests        = "checkout_requests_total"
	MCheckoutDuration        = "checkout_duration_seconds"
	MHTTPRequests            = "http_requests_total"
	MHTTPRequestDuration     = "http_request_duration_seconds"
	MGatewayRequests         = "gateway_requests_total"
	MGatewayRequestDuration  = "gateway_request_duration_seconds"
	MNotificationDispatches  = "notification_dispatch_total"
	MInventoryStockConflicts = "inventory_stock_conflicts_total"
)
