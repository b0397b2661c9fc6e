package kafka

import "time"

// Topics this service produces to. One topic per lifecycle transition that
// moves stock, keyed by order id so consumers see a given order in sequence.
const (
	TopicOrderReserved  = `fulfillment.order-reserved`
	TopicOrderPaid      = `fulfillment.order-paid`
	TopicOrderShipped   = `fulfillment.order-shipped`
	TopicOrderCancelled = `fulfillment.order-cancelled`
	TopicOrderRefunded  = `fulfillment.order-refunded`
)

// OrderLifecycleEvent is the message body produced after a successful
// transition commits.
type OrderLifecycleEvent struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
