package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

var toDelivered = []enums.OrderStatus{
	enums.OrderStatusConfirmed,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
	enums.OrderStatusOutForDelivery,
	enums.OrderStatusDelivered,
}

func TestCustomerCancelsPendingOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, unit := h.placeOrder(t, 2, 5)
	require.Equal(t, 3, h.available(t, unit.ID))

	cancelled, err := h.svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "Changed my mind",
		Actor:   h.customer(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	stored := h.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "Changed my mind", *stored.CancellationReason)
	assert.NotNil(t, stored.CancelledAt)

	entries := h.timeline(t, order.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.OrderStatusPending, entries[0].Status)
	assert.Equal(t, enums.OrderStatusCancelled, entries[1].Status)
	require.NotNil(t, entries[1].ActorRole)
	assert.Equal(t, enums.ActorRoleCustomer, *entries[1].ActorRole)

	assert.Equal(t, 5, h.available(t, unit.ID))
	assert.Equal(t, int64(1), h.outboxCount(t, enums.EventOrderStatusChanged, order.ID))

	_, err = h.svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "Changed my mind",
		Actor:   h.customer(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, pkgerrors.CodeOf(err))
	assert.Equal(t, 5, h.available(t, unit.ID), "stock restored once")
	assert.Len(t, h.timeline(t, order.ID), 2)
}

func TestCustomerCannotCancelConfirmedOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, unit := h.placeOrder(t, 1, 5)
	h.advance(t, order.ID, enums.OrderStatusConfirmed)

	_, err := h.svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "Too slow",
		Actor:   h.customer(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.OrderStatusConfirmed, h.reload(t, order.ID).Status)
	assert.Equal(t, 4, h.available(t, unit.ID))
}

func TestCustomerCannotCancelSomeoneElsesOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)

	_, err := h.svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "Not mine",
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.OrderStatusPending, h.reload(t, order.ID).Status)
}

func TestStaffCancelsShippedOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, unit := h.placeOrder(t, 2, 2)
	h.advance(t, order.ID, enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusShipped)
	require.Equal(t, 0, h.available(t, unit.ID))

	_, err := h.svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "Courier lost the parcel",
		Actor:   h.staff(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, h.reload(t, order.ID).Status)
	assert.Equal(t, 2, h.available(t, unit.ID))
	assert.Len(t, h.timeline(t, order.ID), 5)
}

func TestCancelRequiresReason(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)

	_, err := h.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, Actor: h.customer()})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusCancelled,
		Actor:   h.staff(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.OrderStatusPending, h.reload(t, order.ID).Status)
}

func TestUpdateStatusWalksToDelivered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)

	h.advance(t, order.ID, toDelivered...)

	stored := h.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredAt)
	assert.True(t, stored.DeliveredAt.Equal(fixedNow))

	entries := h.timeline(t, order.ID)
	require.Len(t, entries, len(toDelivered)+1)
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Sequence)
	}
	assert.Equal(t, stored.Status, entries[len(entries)-1].Status)
	assert.Equal(t, int64(len(toDelivered)), h.outboxCount(t, enums.EventOrderStatusChanged, order.ID))
}

func TestUpdateStatusRequiresStaff(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)

	_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusConfirmed,
		Actor:   h.customer(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestInvalidTransitionsLeaveOrderUntouched(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		path []enums.OrderStatus
		to   enums.OrderStatus
	}{
		{name: "pending to shipped", to: enums.OrderStatusShipped},
		{name: "pending to delivered", to: enums.OrderStatusDelivered},
		{name: "confirmed back to pending", path: toDelivered[:1], to: enums.OrderStatusPending},
		{name: "delivered to shipped", path: toDelivered, to: enums.OrderStatusShipped},
		{name: "same status", path: toDelivered[:2], to: enums.OrderStatusProcessing},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			order, _ := h.placeOrder(t, 1, 5)
			h.advance(t, order.ID, tc.path...)
			before := h.reload(t, order.ID)
			entries := len(h.timeline(t, order.ID))

			_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
				OrderID: order.ID,
				Status:  tc.to,
				Actor:   h.staff(),
			})
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeInvalidTransition, pkgerrors.CodeOf(err))
			assert.Contains(t, err.Error(), "cannot transition from "+string(before.Status)+" to "+string(tc.to))

			after := h.reload(t, order.ID)
			assert.Equal(t, before.Status, after.Status)
			timeline := h.timeline(t, order.ID)
			assert.Len(t, timeline, entries)
			assert.Equal(t, after.Status, timeline[len(timeline)-1].Status)
		})
	}
}

func TestTransitionAfterCancelIsRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)
	_, err := h.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, Reason: "duplicate", Actor: h.customer()})
	require.NoError(t, err)

	for _, to := range enums.OrderStatuses() {
		_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID:            order.ID,
			Status:             to,
			CancellationReason: "again",
			Actor:              h.staff(),
		})
		require.Error(t, err, "CANCELLED -> %s", to)
		want := pkgerrors.CodeInvalidTransition
		if IsReturnDriven(to) {
			want = pkgerrors.CodeValidation
		}
		assert.Equal(t, want, pkgerrors.CodeOf(err), "CANCELLED -> %s", to)
	}
	assert.Len(t, h.timeline(t, order.ID), 2)
}

func TestUpdateStatusRefusesReturnDrivenStatuses(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)
	h.advance(t, order.ID, toDelivered...)
	entries := len(h.timeline(t, order.ID))

	for _, to := range []enums.OrderStatus{
		enums.OrderStatusReturnRequested,
		enums.OrderStatusReturnApproved,
		enums.OrderStatusReturnRejected,
		enums.OrderStatusReturnPickupScheduled,
		enums.OrderStatusReturnPicked,
		enums.OrderStatusReturnReceived,
		enums.OrderStatusRefundInitiated,
		enums.OrderStatusRefundCompleted,
	} {
		_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID: order.ID,
			Status:  to,
			Actor:   h.staff(),
		})
		require.Error(t, err, "DELIVERED -> %s", to)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		assert.Contains(t, err.Error(), "return workflow")
	}

	assert.Equal(t, enums.OrderStatusDelivered, h.reload(t, order.ID).Status)
	assert.Len(t, h.timeline(t, order.ID), entries)
}

func TestTransitionRequiresTransaction(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.svc.Transition(context.Background(), nil, TransitionInput{OrderID: uuid.New(), To: enums.OrderStatusConfirmed})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}

func TestTransitionUnknownOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	err := h.conn.Transaction(func(tx *gorm.DB) error {
		_, err := h.svc.Transition(context.Background(), tx, TransitionInput{
			OrderID: uuid.New(),
			To:      enums.OrderStatusConfirmed,
			Actor:   SystemActor(),
		})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGetAndTimelineEnforceOwnership(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	order, _ := h.placeOrder(t, 1, 5)
	stranger := Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer}

	got, err := h.svc.Get(context.Background(), order.ID, h.customer())
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.Len(t, got.Timeline, 1)

	_, err = h.svc.Get(context.Background(), order.ID, stranger)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = h.svc.Get(context.Background(), order.ID, h.staff())
	assert.NoError(t, err)

	_, err = h.svc.Timeline(context.Background(), order.ID, stranger)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	entries, err := h.svc.Timeline(context.Background(), order.ID, h.customer())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListPaginatesUserOrders(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		h.placeOrder(t, 1, 5)
	}

	first, err := h.svc.List(context.Background(), h.customer(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := h.svc.List(context.Background(), h.customer(), pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, o := range append(first.Orders, second.Orders...) {
		seen[o.ID] = true
	}
	assert.Len(t, seen, 3)

	_, err = h.svc.List(context.Background(), h.customer(), pagination.Params{Cursor: "not-a-cursor"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
