package enums

import "fmt"

// ReturnRequestStatus tracks a return from request through refund.
type ReturnRequestStatus string

const (
	ReturnStatusPending         ReturnRequestStatus = "PENDING"
	ReturnStatusApproved        ReturnRequestStatus = "APPROVED"
	ReturnStatusRejected        ReturnRequestStatus = "REJECTED"
	ReturnStatusPickupScheduled ReturnRequestStatus = "PICKUP_SCHEDULED"
	ReturnStatusPickupCompleted ReturnRequestStatus = "PICKUP_COMPLETED"
	ReturnStatusReceived        ReturnRequestStatus = "RECEIVED"
	ReturnStatusQCPassed        ReturnRequestStatus = "QC_PASSED"
	ReturnStatusQCFailed        ReturnRequestStatus = "QC_FAILED"
	ReturnStatusRefundInitiated ReturnRequestStatus = "REFUND_INITIATED"
	ReturnStatusRefundCompleted ReturnRequestStatus = "REFUND_COMPLETED"
)

var validReturnStatuses = []ReturnRequestStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusRejected,
	ReturnStatusPickupScheduled,
	ReturnStatusPickupCompleted,
	ReturnStatusReceived,
	ReturnStatusQCPassed,
	ReturnStatusQCFailed,
	ReturnStatusRefundInitiated,
	ReturnStatusRefundCompleted,
}

// ReturnStatuses returns every known return status.
func ReturnStatuses() []ReturnRequestStatus {
	out := make([]ReturnRequestStatus, len(validReturnStatuses))
	copy(out, validReturnStatuses)
	return out
}

// String implements fmt.Stringer.
func (s ReturnRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnRequestStatus.
func (s ReturnRequestStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReturnRequestStatus converts raw input into a ReturnRequestStatus.
func ParseReturnRequestStatus(value string) (ReturnRequestStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}

// QCStatus is the outcome of a returned item's inspection.
type QCStatus string

const (
	QCStatusPassed QCStatus = "PASSED"
	QCStatusFailed QCStatus = "FAILED"
)

// String implements fmt.Stringer.
func (q QCStatus) String() string {
	return string(q)
}
