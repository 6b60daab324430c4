package enums

import "fmt"

// OrderStatus is the lifecycle state of a customer order.
type OrderStatus string

const (
	OrderStatusPending               OrderStatus = "PENDING"
	OrderStatusConfirmed             OrderStatus = "CONFIRMED"
	OrderStatusProcessing            OrderStatus = "PROCESSING"
	OrderStatusShipped               OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery        OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered             OrderStatus = "DELIVERED"
	OrderStatusCancelled             OrderStatus = "CANCELLED"
	OrderStatusReturnRequested       OrderStatus = "RETURN_REQUESTED"
	OrderStatusReturnApproved        OrderStatus = "RETURN_APPROVED"
	OrderStatusReturnRejected        OrderStatus = "RETURN_REJECTED"
	OrderStatusReturnPickupScheduled OrderStatus = "RETURN_PICKUP_SCHEDULED"
	OrderStatusReturnPicked          OrderStatus = "RETURN_PICKED"
	OrderStatusReturnReceived        OrderStatus = "RETURN_RECEIVED"
	OrderStatusRefundInitiated       OrderStatus = "REFUND_INITIATED"
	OrderStatusRefundCompleted       OrderStatus = "REFUND_COMPLETED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturnRequested,
	OrderStatusReturnApproved,
	OrderStatusReturnRejected,
	OrderStatusReturnPickupScheduled,
	OrderStatusReturnPicked,
	OrderStatusReturnReceived,
	OrderStatusRefundInitiated,
	OrderStatusRefundCompleted,
}

// OrderStatuses returns every known order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
