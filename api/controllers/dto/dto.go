// Package dto shapes persisted records into the JSON returned by the API.
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

type OrderItem struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	InventoryUnitID *uuid.UUID      `json:"inventory_unit_id,omitempty"`
	ProductName     string          `json:"product_name"`
	Description     *string         `json:"product_description,omitempty"`
	Color           *string         `json:"color,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FinalPrice      decimal.Decimal `json:"final_price"`
}

type TimelineEntry struct {
	Sequence  int               `json:"sequence"`
	Status    enums.OrderStatus `json:"status"`
	Comment   *string           `json:"comment,omitempty"`
	ActorID   *uuid.UUID        `json:"actor_id,omitempty"`
	ActorRole *enums.ActorRole  `json:"actor_role,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Order struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	UserID             uuid.UUID           `json:"user_id"`
	Status             enums.OrderStatus   `json:"order_status"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	DiscountAmount     decimal.Decimal     `json:"discount_amount"`
	ShippingCharge     decimal.Decimal     `json:"shipping_charge"`
	FinalAmount        decimal.Decimal     `json:"final_amount"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	PaymentReference   *string             `json:"payment_reference,omitempty"`
	ShippingAddressID  uuid.UUID           `json:"shipping_address_id"`
	BillingAddressID   uuid.UUID           `json:"billing_address_id"`
	Notes              *string             `json:"notes,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	Items              []OrderItem         `json:"items,omitempty"`
	Timeline           []TimelineEntry     `json:"timeline,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type Return struct {
	ID              uuid.UUID                 `json:"id"`
	OrderID         uuid.UUID                 `json:"order_id"`
	UserID          uuid.UUID                 `json:"user_id"`
	Reason          string                    `json:"reason"`
	Description     string                    `json:"description"`
	Images          []string                  `json:"images"`
	RefundAmount    decimal.Decimal           `json:"refund_amount"`
	Status          enums.ReturnRequestStatus `json:"status"`
	PickupDate      *string                   `json:"pickup_date,omitempty"`
	RejectionReason *string                   `json:"rejection_reason,omitempty"`
	QCStatus        *enums.QCStatus           `json:"qc_status,omitempty"`
	QCNotes         *string                   `json:"qc_notes,omitempty"`
	QCAt            *time.Time                `json:"qc_at,omitempty"`
	RefundID        *string                   `json:"refund_id,omitempty"`
	RefundedAt      *time.Time                `json:"refunded_at,omitempty"`
	StaffComment    *string                   `json:"staff_comment,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

type Pickup struct {
	ID            uuid.UUID          `json:"id"`
	ReturnID      uuid.UUID          `json:"return_request_id"`
	ScheduledDate string             `json:"scheduled_date"`
	Slot          enums.PickupSlot   `json:"time_slot"`
	Status        enums.PickupStatus `json:"status"`
	AttemptCount  int                `json:"attempt_count"`
	AgentName     *string            `json:"agent_name,omitempty"`
	AgentPhone    *string            `json:"agent_phone,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type PickupHistoryEntry struct {
	Sequence      int                `json:"sequence"`
	Status        enums.PickupStatus `json:"status"`
	ScheduledDate string             `json:"scheduled_date"`
	Slot          enums.PickupSlot   `json:"time_slot"`
	AttemptCount  int                `json:"attempt_count"`
	AgentName     *string            `json:"agent_name,omitempty"`
	AgentPhone    *string            `json:"agent_phone,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	ActorID       *uuid.UUID         `json:"actor_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

type Notification struct {
	ID        uuid.UUID             `json:"id"`
	EventType enums.OutboxEventType `json:"event_type"`
	OrderID   *uuid.UUID            `json:"order_id,omitempty"`
	Subject   string                `json:"subject"`
	Body      string                `json:"body"`
	SentAt    *time.Time            `json:"sent_at,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type NotificationPage struct {
	Items  []Notification `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

func FromOrder(o *models.Order) Order {
	out := Order{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Status:             o.Status,
		TotalAmount:        o.TotalAmount,
		DiscountAmount:     o.DiscountAmount,
		ShippingCharge:     o.ShippingCharge,
		FinalAmount:        o.FinalAmount,
		PaymentMethod:      o.PaymentMethod,
		PaymentReference:   o.PaymentReference,
		ShippingAddressID:  o.ShippingAddressID,
		BillingAddressID:   o.BillingAddressID,
		Notes:              o.Notes,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, OrderItem{
			ID:              item.ID,
			ProductID:       item.ProductID,
			InventoryUnitID: item.InventoryUnitID,
			ProductName:     item.ProductName,
			Description:     item.ProductDescription,
			Color:           item.Color,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			Price:           item.Price,
			DiscountPercent: item.DiscountPercent,
			FinalPrice:      item.FinalPrice,
		})
	}
	out.Timeline = FromTimeline(o.Timeline)
	return out
}

func FromTimeline(rows []models.OrderTimeline) []TimelineEntry {
	if len(rows) == 0 {
		return nil
	}
	out := make([]TimelineEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, TimelineEntry{
			Sequence:  row.Sequence,
			Status:    row.Status,
			Comment:   row.Comment,
			ActorID:   row.ActorID,
			ActorRole: row.ActorRole,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}

func FromReturn(r *models.ReturnRequest) Return {
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return Return{
		ID:              r.ID,
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		Reason:          r.Reason,
		Description:     r.Description,
		Images:          images,
		RefundAmount:    r.RefundAmount,
		Status:          r.Status,
		PickupDate:      dateString(r.PickupDate),
		RejectionReason: r.RejectionReason,
		QCStatus:        r.QCStatus,
		QCNotes:         r.QCNotes,
		QCAt:            r.QCAt,
		RefundID:        r.RefundID,
		RefundedAt:      r.RefundedAt,
		StaffComment:    r.StaffComment,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func FromPickup(p *models.ReturnPickup) Pickup {
	return Pickup{
		ID:            p.ID,
		ReturnID:      p.ReturnRequestID,
		ScheduledDate: p.ScheduledDate.Format(time.DateOnly),
		Slot:          p.Slot,
		Status:        p.Status,
		AttemptCount:  p.AttemptCount,
		AgentName:     p.AgentName,
		AgentPhone:    p.AgentPhone,
		Notes:         p.Notes,
		CompletedAt:   p.CompletedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func FromPickupHistory(rows []models.ReturnPickupHistory) []PickupHistoryEntry {
	out := make([]PickupHistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, PickupHistoryEntry{
			Sequence:      row.Sequence,
			Status:        row.Status,
			ScheduledDate: row.ScheduledDate.Format(time.DateOnly),
			Slot:          row.Slot,
			AttemptCount:  row.AttemptCount,
			AgentName:     row.AgentName,
			AgentPhone:    row.AgentPhone,
			Notes:         row.Notes,
			ActorID:       row.ActorID,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out
}

func FromNotifications(rows []models.Notification, cursor string) NotificationPage {
	page := NotificationPage{Items: make([]Notification, 0, len(rows)), Cursor: cursor}
	for _, row := range rows {
		page.Items = append(page.Items, Notification{
			ID:        row.ID,
			EventType: row.EventType,
			OrderID:   row.OrderID,
			Subject:   row.Subject,
			Body:      row.Body,
			SentAt:    row.SentAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return page
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
