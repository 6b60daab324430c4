package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Actor is the authenticated caller supplied by the identity layer.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// IsStaff reports whether the actor may run staff-only operations.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// SystemActor is used by background jobs.
func SystemActor() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

// CreateOrderInput carries everything needed to turn the active cart into an order.
type CreateOrderInput struct {
	UserID            uuid.UUID           `validate:"required"`
	ShippingAddressID uuid.UUID           `validate:"required"`
	BillingAddressID  uuid.UUID           `validate:"required"`
	PaymentMethod     enums.PaymentMethod `validate:"required,oneof=COD CARD UPI NET_BANKING WALLET"`
	PaymentReference  *string             `validate:"omitempty,max=128"`
	Notes             *string             `validate:"omitempty,max=1000"`
}

// TransitionInput drives one order status change.
type TransitionInput struct {
	OrderID            uuid.UUID
	To                 enums.OrderStatus
	Comment            string
	CancellationReason string
	Actor              Actor
}

// UpdateStatusInput is a staff status advance.
type UpdateStatusInput struct {
	OrderID            uuid.UUID         `validate:"required"`
	Status             enums.OrderStatus `validate:"required"`
	Comment            string            `validate:"max=500"`
	CancellationReason string            `validate:"max=500"`
	Actor              Actor
}

// CancelInput cancels an order on behalf of a customer or staff member.
type CancelInput struct {
	OrderID uuid.UUID `validate:"required"`
	Reason  string    `validate:"required,min=3,max=500"`
	Actor   Actor
}

// OrderSummary is the list view of an order.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"order_status"`
	FinalAmount   decimal.Decimal     `json:"final_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList is one page of a user's orders.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func summarize(order models.Order) OrderSummary {
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		FinalAmount:   order.FinalAmount,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	}
}
