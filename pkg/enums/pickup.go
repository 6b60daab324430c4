package enums

import "fmt"

// PickupStatus tracks the courier collection of a returned item.
type PickupStatus string

const (
	PickupStatusScheduled   PickupStatus = "SCHEDULED"
	PickupStatusRescheduled PickupStatus = "RESCHEDULED"
	PickupStatusAttempted   PickupStatus = "ATTEMPTED"
	PickupStatusInTransit   PickupStatus = "IN_TRANSIT"
	PickupStatusCompleted   PickupStatus = "COMPLETED"
	PickupStatusFailed      PickupStatus = "FAILED"
	PickupStatusCancelled   PickupStatus = "CANCELLED"
)

var validPickupStatuses = []PickupStatus{
	PickupStatusScheduled,
	PickupStatusRescheduled,
	PickupStatusAttempted,
	PickupStatusInTransit,
	PickupStatusCompleted,
	PickupStatusFailed,
	PickupStatusCancelled,
}

// String implements fmt.Stringer.
func (s PickupStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PickupStatus.
func (s PickupStatus) IsValid() bool {
	for _, candidate := range validPickupStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsClosed reports whether the pickup accepts no further changes.
func (s PickupStatus) IsClosed() bool {
	return s == PickupStatusCompleted || s == PickupStatusCancelled
}

// ParsePickupStatus converts raw input into a PickupStatus.
func ParsePickupStatus(value string) (PickupStatus, error) {
	for _, candidate := range validPickupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup status %q", value)
}

// PickupSlot is the coarse time window offered for collection.
type PickupSlot string

const (
	PickupSlotMorning   PickupSlot = "MORNING"
	PickupSlotAfternoon PickupSlot = "AFTERNOON"
	PickupSlotEvening   PickupSlot = "EVENING"
)

var validPickupSlots = []PickupSlot{
	PickupSlotMorning,
	PickupSlotAfternoon,
	PickupSlotEvening,
}

// String implements fmt.Stringer.
func (s PickupSlot) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PickupSlot.
func (s PickupSlot) IsValid() bool {
	for _, candidate := range validPickupSlots {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePickupSlot converts raw input into a PickupSlot.
func ParsePickupSlot(value string) (PickupSlot, error) {
	for _, candidate := range validPickupSlots {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup slot %q", value)
}
