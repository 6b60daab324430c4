package orders

import (
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// transitions lists the allowed next states for every order status. Statuses
// mapped to an empty slice are terminal.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:               {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:             {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:            {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:               {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery:        {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered:             {enums.OrderStatusReturnRequested},
	enums.OrderStatusCancelled:             {},
	enums.OrderStatusReturnRequested:       {enums.OrderStatusReturnApproved, enums.OrderStatusReturnRejected},
	enums.OrderStatusReturnApproved:        {enums.OrderStatusReturnPickupScheduled},
	enums.OrderStatusReturnRejected:        {},
	enums.OrderStatusReturnPickupScheduled: {enums.OrderStatusReturnPicked},
	enums.OrderStatusReturnPicked:          {enums.OrderStatusReturnReceived},
	enums.OrderStatusReturnReceived:        {enums.OrderStatusRefundInitiated},
	enums.OrderStatusRefundInitiated:       {enums.OrderStatusRefundCompleted},
	enums.OrderStatusRefundCompleted:       {},
}

// CanTransition reports whether from -> to is an edge of the order graph.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the targets reachable from status.
func AllowedTransitions(status enums.OrderStatus) []enums.OrderStatus {
	next := transitions[status]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether status has no outgoing edges.
func IsTerminal(status enums.OrderStatus) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// IsReturnDriven reports whether status belongs to the return workflow. Those
// statuses move only alongside their return request, never by direct update.
func IsReturnDriven(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusReturnRequested,
		enums.OrderStatusReturnApproved,
		enums.OrderStatusReturnRejected,
		enums.OrderStatusReturnPickupScheduled,
		enums.OrderStatusReturnPicked,
		enums.OrderStatusReturnReceived,
		enums.OrderStatusRefundInitiated,
		enums.OrderStatusRefundCompleted:
		return true
	}
	return false
}

// IsPreDelivery reports whether the order has not reached the customer yet.
func IsPreDelivery(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusOutForDelivery:
		return true
	}
	return false
}
