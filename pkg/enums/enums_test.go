package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOrderStatusIsExact(t *testing.T) {
	status, err := ParseOrderStatus("OUT_FOR_DELIVERY")
	require.NoError(t, err)
	require.Equal(t, OrderStatusOutForDelivery, status)

	_, err = ParseOrderStatus("out_for_delivery")
	require.Error(t, err)
	require.Len(t, OrderStatuses(), 15)
}

func TestPaymentMethodIsOnline(t *testing.T) {
	require.False(t, PaymentMethodCOD.IsOnline())
	require.True(t, PaymentMethodUPI.IsOnline())
	require.True(t, PaymentMethodCard.IsOnline())
	require.False(t, PaymentMethod("BARTER").IsOnline())
}

func TestPickupStatusIsClosed(t *testing.T) {
	require.True(t, PickupStatusCompleted.IsClosed())
	require.True(t, PickupStatusCancelled.IsClosed())
	require.False(t, PickupStatusFailed.IsClosed())
	require.False(t, PickupStatusRescheduled.IsClosed())
}

func TestParseRefundStatusNormalizes(t *testing.T) {
	status, err := ParseRefundStatus(" completed ")
	require.NoError(t, err)
	require.Equal(t, RefundStatusCompleted, status)

	_, err = ParseRefundStatus("settled")
	require.Error(t, err)
}

func TestActorRoleIsStaff(t *testing.T) {
	require.True(t, ActorRoleStaff.IsStaff())
	require.True(t, ActorRoleSystem.IsStaff())
	require.False(t, ActorRoleCustomer.IsStaff())

	_, err := ParseActorRole("vendor")
	require.Error(t, err)
}

func TestOutboxDLQErrorReasons(t *testing.T) {
	for _, reason := range []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable} {
		require.True(t, reason.IsValid(), string(reason))
	}
	require.False(t, OutboxDLQErrorReason("timeout").IsValid())
}
