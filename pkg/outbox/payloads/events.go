package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// OrderCreatedEvent announces a freshly placed order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	FinalAmount   decimal.Decimal     `json:"final_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent is emitted for every accepted order transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Comment     string            `json:"comment,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// ReturnRequestedEvent announces a new return request to staff.
type ReturnRequestedEvent struct {
	ReturnID     uuid.UUID       `json:"return_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	UserID       uuid.UUID       `json:"user_id"`
	Reason       string          `json:"reason"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	ImageCount   int             `json:"image_count"`
}

// ReturnStatusChangedEvent is emitted whenever a return request changes state.
type ReturnStatusChangedEvent struct {
	ReturnID    uuid.UUID                 `json:"return_id"`
	OrderID     uuid.UUID                 `json:"order_id"`
	OrderNumber string                    `json:"order_number"`
	UserID      uuid.UUID                 `json:"user_id"`
	From        enums.ReturnRequestStatus `json:"from"`
	To          enums.ReturnRequestStatus `json:"to"`
	Comment     string                    `json:"comment,omitempty"`
}

// PickupUpdatedEvent mirrors a pickup history row.
type PickupUpdatedEvent struct {
	PickupID      uuid.UUID          `json:"pickup_id"`
	ReturnID      uuid.UUID          `json:"return_id"`
	UserID        uuid.UUID          `json:"user_id"`
	Status        enums.PickupStatus `json:"status"`
	ScheduledDate time.Time          `json:"scheduled_date"`
	Slot          enums.PickupSlot   `json:"slot"`
	AttemptCount  int                `json:"attempt_count"`
}

// RefundEvent covers both refund initiation and completion.
type RefundEvent struct {
	ReturnID    uuid.UUID       `json:"return_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	RefundID    string          `json:"refund_id"`
	Amount      decimal.Decimal `json:"amount"`
	Gateway     string          `json:"gateway,omitempty"`
}
