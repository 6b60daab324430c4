package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

func TestTransitionTableCoversEveryStatus(t *testing.T) {
	for _, status := range enums.OrderStatuses() {
		_, ok := transitions[status]
		assert.True(t, ok, "status %s missing from table", status)
	}
	assert.Len(t, transitions, len(enums.OrderStatuses()))
}

func TestCanTransitionEveryPair(t *testing.T) {
	edges := map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:               {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		enums.OrderStatusConfirmed:             {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
		enums.OrderStatusProcessing:            {enums.OrderStatusShipped, enums.OrderStatusCancelled},
		enums.OrderStatusShipped:               {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
		enums.OrderStatusOutForDelivery:        {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
		enums.OrderStatusDelivered:             {enums.OrderStatusReturnRequested},
		enums.OrderStatusReturnRequested:       {enums.OrderStatusReturnApproved, enums.OrderStatusReturnRejected},
		enums.OrderStatusReturnApproved:        {enums.OrderStatusReturnPickupScheduled},
		enums.OrderStatusReturnPickupScheduled: {enums.OrderStatusReturnPicked},
		enums.OrderStatusReturnPicked:          {enums.OrderStatusReturnReceived},
		enums.OrderStatusReturnReceived:        {enums.OrderStatusRefundInitiated},
		enums.OrderStatusRefundInitiated:       {enums.OrderStatusRefundCompleted},
	}

	for _, from := range enums.OrderStatuses() {
		allowed := map[enums.OrderStatus]bool{}
		for _, to := range edges[from] {
			allowed[to] = true
		}
		for _, to := range enums.OrderStatuses() {
			assert.Equal(t, allowed[to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[enums.OrderStatus]bool{
		enums.OrderStatusCancelled:       true,
		enums.OrderStatusReturnRejected:  true,
		enums.OrderStatusRefundCompleted: true,
	}
	for _, status := range enums.OrderStatuses() {
		assert.Equal(t, terminal[status], IsTerminal(status), string(status))
	}
	assert.False(t, IsTerminal(enums.OrderStatus("UNKNOWN")))
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	next := AllowedTransitions(enums.OrderStatusPending)
	next[0] = enums.OrderStatusDelivered
	assert.True(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusConfirmed))
	assert.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusDelivered))
}

func TestCancellableStatesArePreDelivery(t *testing.T) {
	for _, status := range enums.OrderStatuses() {
		assert.Equal(t, IsPreDelivery(status), CanTransition(status, enums.OrderStatusCancelled), string(status))
	}
}
