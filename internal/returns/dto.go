package returns

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// EvidenceFile is one image attached to a return request.
type EvidenceFile struct {
	Filename    string    `validate:"required,max=255"`
	ContentType string    `validate:"required"`
	Size        int64     `validate:"gt=0"`
	Content     io.Reader `validate:"required"`
}

// CreateReturnInput opens a return against a delivered order.
type CreateReturnInput struct {
	UserID      uuid.UUID      `validate:"required"`
	OrderID     uuid.UUID      `validate:"required"`
	Reason      string         `validate:"required,min=3,max=200"`
	Description string         `validate:"required,min=10,max=2000"`
	Images      []EvidenceFile `validate:"max=5,dive"`
}

// ApproveInput accepts a pending return and proposes a pickup date.
type ApproveInput struct {
	ReturnID   uuid.UUID `validate:"required"`
	PickupDate time.Time `validate:"required"`
	Comment    string    `validate:"max=500"`
	Actor      orders.Actor
}

// RejectInput closes a pending return.
type RejectInput struct {
	ReturnID uuid.UUID `validate:"required"`
	Reason   string    `validate:"required,min=3,max=500"`
	Actor    orders.Actor
}

// ReturnStatusInput is a staff status advance, e.g. warehouse receipt.
type ReturnStatusInput struct {
	ReturnID uuid.UUID                 `validate:"required"`
	Status   enums.ReturnRequestStatus `validate:"required"`
	Comment  string                    `validate:"max=500"`
	Actor    orders.Actor
}

// ScheduleInput books the first pickup for an approved return.
type ScheduleInput struct {
	ReturnID      uuid.UUID        `validate:"required"`
	ScheduledDate time.Time        `validate:"required"`
	Slot          enums.PickupSlot `validate:"required"`
	Actor         orders.Actor
}

// RescheduleInput moves an open pickup to a new date and slot.
type RescheduleInput struct {
	PickupID      uuid.UUID        `validate:"required"`
	ScheduledDate time.Time        `validate:"required"`
	Slot          enums.PickupSlot `validate:"required"`
	Reason        string           `validate:"max=500"`
	Actor         orders.Actor
}

// AgentDetails identifies the courier handling a pickup.
type AgentDetails struct {
	Name  string `validate:"required,max=120"`
	Phone string `validate:"required,max=32"`
}

// PickupStatusInput records courier progress on a pickup.
type PickupStatusInput struct {
	PickupID uuid.UUID          `validate:"required"`
	Status   enums.PickupStatus `validate:"required"`
	Notes    *string            `validate:"omitempty,max=1000"`
	Agent    *AgentDetails      `validate:"omitempty"`
	Actor    orders.Actor
}

// QualityCheckInput records the inspection outcome of a received return.
type QualityCheckInput struct {
	ReturnID uuid.UUID `validate:"required"`
	Passed   bool
	Notes    string `validate:"max=2000"`
	Actor    orders.Actor
}

// RefundStatusInput reports settlement of an initiated refund.
type RefundStatusInput struct {
	ReturnID uuid.UUID          `validate:"required"`
	Status   enums.RefundStatus `validate:"required"`
	Actor    orders.Actor
}

// ReconcileResult summarizes one refund polling pass.
type ReconcileResult struct {
	Checked   int
	Completed int
	Failed    int
	Pending   int
}
