package order

import "time"

// OrderCreatedEvent is emitted after a checkout persists a new order. Handled
// by the notification worker; failures there never roll back the order.
type OrderCreatedEvent struct {
	OrderID    string
	BuyerID    string
	VendorIDs  []string
	Total      string
	Status     Status
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		VendorIDs:  append([]string(nil), o.VendorIDs...),
		Total:      o.Total.String(),
		Status:     o.Status,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderPaidEvent is emitted when settlement completes, either immediately from
// the wallet or asynchronously from a gateway webhook.
type OrderPaidEvent struct {
	OrderID    string
	BuyerID    string
	VendorIDs  []string
	Total      string
	OccurredAt time.Time
}

func (OrderPaidEvent) EventName() string { return "order.paid" }

func NewOrderPaidEvent(o *Order) OrderPaidEvent {
	return OrderPaidEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		VendorIDs:  append([]string(nil), o.VendorIDs...),
		Total:      o.Total.String(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderFailedEvent is emitted when an external charge is reported failed.
type OrderFailedEvent struct {
	OrderID    string
	BuyerID    string
	Reason     string
	OccurredAt time.Time
}

func (OrderFailedEvent) EventName() string { return "order.failed" }

func NewOrderFailedEvent(o *Order, reason string) OrderFailedEvent {
	return OrderFailedEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
