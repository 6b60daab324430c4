package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

func TestReturnTableCoversEveryStatus(t *testing.T) {
	for _, status := range enums.ReturnStatuses() {
		_, ok := transitions[status]
		assert.True(t, ok, "status %s missing from table", status)
	}
}

func TestReturnTerminalStatuses(t *testing.T) {
	terminal := map[enums.ReturnRequestStatus]bool{
		enums.ReturnStatusRejected:        true,
		enums.ReturnStatusQCFailed:        true,
		enums.ReturnStatusRefundCompleted: true,
	}
	for _, status := range enums.ReturnStatuses() {
		assert.Equal(t, terminal[status], IsTerminal(status), string(status))
	}
}

// QC outcomes deliberately have no order counterpart: the order keeps its
// current status when they are applied.
func TestQCStatusesAreUnmapped(t *testing.T) {
	unmapped := map[enums.ReturnRequestStatus]bool{
		enums.ReturnStatusQCPassed: true,
		enums.ReturnStatusQCFailed: true,
	}
	for _, status := range enums.ReturnStatuses() {
		_, ok := OrderStatusFor(status)
		assert.Equal(t, !unmapped[status], ok, string(status))
	}
}

func TestMappedTargetsFollowOrderGraphShape(t *testing.T) {
	cases := map[enums.ReturnRequestStatus]enums.OrderStatus{
		enums.ReturnStatusPending:         enums.OrderStatusReturnRequested,
		enums.ReturnStatusApproved:        enums.OrderStatusReturnApproved,
		enums.ReturnStatusRejected:        enums.OrderStatusReturnRejected,
		enums.ReturnStatusPickupScheduled: enums.OrderStatusReturnPickupScheduled,
		enums.ReturnStatusPickupCompleted: enums.OrderStatusReturnPicked,
		enums.ReturnStatusReceived:        enums.OrderStatusReturnReceived,
		enums.ReturnStatusRefundInitiated: enums.OrderStatusRefundInitiated,
		enums.ReturnStatusRefundCompleted: enums.OrderStatusRefundCompleted,
	}
	for in, want := range cases {
		got, ok := OrderStatusFor(in)
		assert.True(t, ok)
		assert.Equal(t, want, got, string(in))
		assert.True(t, orders.IsReturnDriven(got), "%s must not be settable directly", got)
	}
}

func TestReturnCanTransition(t *testing.T) {
	assert.True(t, CanTransition(enums.ReturnStatusPending, enums.ReturnStatusApproved))
	assert.True(t, CanTransition(enums.ReturnStatusReceived, enums.ReturnStatusQCFailed))
	assert.True(t, CanTransition(enums.ReturnStatusQCPassed, enums.ReturnStatusRefundInitiated))
	assert.False(t, CanTransition(enums.ReturnStatusApproved, enums.ReturnStatusApproved))
	assert.False(t, CanTransition(enums.ReturnStatusQCFailed, enums.ReturnStatusRefundInitiated))
	assert.False(t, CanTransition(enums.ReturnStatusReceived, enums.ReturnStatusRefundInitiated))
}
