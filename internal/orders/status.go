package orders

import "fmt"

// Status is the fulfillment state of an order. Every stock effect hangs off
// exactly one transition, so callers never compare raw strings.
type Status string

const (
	StatusPending         Status = "pending"          // created, nothing reserved yet
	StatusAwaitingPayment Status = "awaiting_payment" // stock reserved, waiting on payment
	StatusPaid            Status = "paid"             // settled: stock deducted for good
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled" // terminal, stock given back
	StatusRefunded        Status = "refunded"  // terminal, quantity restored post-settlement
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingPayment: {StatusPaid, StatusCancelled},
	StatusPaid:            {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:         {StatusDelivered, StatusRefunded},
	StatusDelivered:       {StatusRefunded},
	StatusCancelled:       nil,
	StatusRefunded:        nil,
}

// CanTransitionTo reports whether moving from s to next is a legal step of
// the order lifecycle.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// InvalidTransitionError reports a lifecycle step attempted from the wrong
// state, e.g. settling an order that was never reserved.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}
