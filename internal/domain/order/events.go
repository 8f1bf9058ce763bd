package order

import "time"

// OrderPlacedEvent is emitted after an order record is persisted. The
// notification worker consumes it to send the confirmation email; delivery is
// best-effort and never affects the checkout response.
type OrderPlacedEvent struct {
	Order      *Order
	UserEmail  string
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order, userEmail string) OrderPlacedEvent {
	return OrderPlacedEvent{
		Order:      o.Clone(),
		UserEmail:  userEmail,
		OccurredAt: time.Now().UTC(),
	}
}
