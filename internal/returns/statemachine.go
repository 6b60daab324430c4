package returns

import (
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

var transitions = map[enums.ReturnRequestStatus][]enums.ReturnRequestStatus{
	enums.ReturnStatusPending:         {enums.ReturnStatusApproved, enums.ReturnStatusRejected},
	enums.ReturnStatusApproved:        {enums.ReturnStatusPickupScheduled},
	enums.ReturnStatusRejected:        {},
	enums.ReturnStatusPickupScheduled: {enums.ReturnStatusPickupCompleted},
	enums.ReturnStatusPickupCompleted: {enums.ReturnStatusReceived},
	enums.ReturnStatusReceived:        {enums.ReturnStatusQCPassed, enums.ReturnStatusQCFailed},
	enums.ReturnStatusQCPassed:        {enums.ReturnStatusRefundInitiated},
	enums.ReturnStatusQCFailed:        {},
	enums.ReturnStatusRefundInitiated: {enums.ReturnStatusRefundCompleted},
	enums.ReturnStatusRefundCompleted: {},
}

// orderStatusFor maps a return status to the order status it drives. QC
// outcomes have no order counterpart; the order is left alone for them.
var orderStatusFor = map[enums.ReturnRequestStatus]enums.OrderStatus{
	enums.ReturnStatusPending:         enums.OrderStatusReturnRequested,
	enums.ReturnStatusApproved:        enums.OrderStatusReturnApproved,
	enums.ReturnStatusRejected:        enums.OrderStatusReturnRejected,
	enums.ReturnStatusPickupScheduled: enums.OrderStatusReturnPickupScheduled,
	enums.ReturnStatusPickupCompleted: enums.OrderStatusReturnPicked,
	enums.ReturnStatusReceived:        enums.OrderStatusReturnReceived,
	enums.ReturnStatusRefundInitiated: enums.OrderStatusRefundInitiated,
	enums.ReturnStatusRefundCompleted: enums.OrderStatusRefundCompleted,
}

// CanTransition reports whether a return may move from -> to.
func CanTransition(from, to enums.ReturnRequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the statuses reachable from status.
func AllowedTransitions(status enums.ReturnRequestStatus) []enums.ReturnRequestStatus {
	next := transitions[status]
	out := make([]enums.ReturnRequestStatus, len(next))
	copy(out, next)
	return out
}

// OrderStatusFor returns the order status a return status maps to, and false
// when the return status has no order counterpart.
func OrderStatusFor(status enums.ReturnRequestStatus) (enums.OrderStatus, bool) {
	to, ok := orderStatusFor[status]
	return to, ok
}

// IsTerminal reports whether status accepts no further transitions.
func IsTerminal(status enums.ReturnRequestStatus) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}
