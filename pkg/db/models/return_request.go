package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/fulfillment-backend/pkg/db/types"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// ReturnRequest is the single return opened against a delivered order.
type ReturnRequest struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID          uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	Reason          string                    `gorm:"column:reason;not null"`
	Description     string                    `gorm:"column:description;not null"`
	Images          dbtypes.StringList        `gorm:"column:images;type:jsonb;not null"`
	RefundAmount    decimal.Decimal           `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	Status          enums.ReturnRequestStatus `gorm:"column:status;not null"`
	PickupDate      *time.Time                `gorm:"column:pickup_date"`
	RejectionReason *string                   `gorm:"column:rejection_reason"`
	QCStatus        *enums.QCStatus           `gorm:"column:qc_status"`
	QCNotes         *string                   `gorm:"column:qc_notes"`
	QCAt            *time.Time                `gorm:"column:qc_at"`
	RefundID        *string                   `gorm:"column:refund_id"`
	RefundedAt      *time.Time                `gorm:"column:refunded_at"`
	StaffComment    *string                   `gorm:"column:staff_comment"`
	IsDeleted       bool                      `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *ReturnRequest) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// ReturnPickup is the current courier pickup for a return request.
type ReturnPickup struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ReturnRequestID uuid.UUID          `gorm:"column:return_request_id;type:uuid;not null;uniqueIndex"`
	ScheduledDate   time.Time          `gorm:"column:scheduled_date;not null"`
	Slot            enums.PickupSlot   `gorm:"column:time_slot;not null"`
	Status          enums.PickupStatus `gorm:"column:status;not null"`
	AttemptCount    int                `gorm:"column:attempt_count;not null;default:0"`
	AgentName       *string            `gorm:"column:agent_name"`
	AgentPhone      *string            `gorm:"column:agent_phone"`
	Notes           *string            `gorm:"column:notes"`
	CompletedAt     *time.Time         `gorm:"column:completed_at"`
	IsDeleted       bool               `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *ReturnPickup) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// ReturnPickupHistory mirrors every pickup mutation. Rows are never updated.
type ReturnPickupHistory struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PickupID      uuid.UUID          `gorm:"column:pickup_id;type:uuid;not null;uniqueIndex:ux_return_pickup_history_sequence,priority:1"`
	Sequence      int                `gorm:"column:sequence;not null;uniqueIndex:ux_return_pickup_history_sequence,priority:2"`
	Status        enums.PickupStatus `gorm:"column:status;not null"`
	ScheduledDate time.Time          `gorm:"column:scheduled_date;not null"`
	Slot          enums.PickupSlot   `gorm:"column:time_slot;not null"`
	AttemptCount  int                `gorm:"column:attempt_count;not null"`
	AgentName     *string            `gorm:"column:agent_name"`
	AgentPhone    *string            `gorm:"column:agent_phone"`
	Notes         *string            `gorm:"column:notes"`
	ActorID       *uuid.UUID         `gorm:"column:actor_id;type:uuid"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (ReturnPickupHistory) TableName() string {
	return "return_pickup_history"
}

func (h *ReturnPickupHistory) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}
