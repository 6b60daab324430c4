package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Order is the durable record created from a cart. Orders are never hard
// deleted; cancellation is a terminal status.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	ShippingCharge     decimal.Decimal     `gorm:"column:shipping_charge;type:numeric(12,2);not null"`
	FinalAmount        decimal.Decimal     `gorm:"column:final_amount;type:numeric(12,2);not null"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentReference   *string             `gorm:"column:payment_reference"`
	ShippingAddressID  uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID   uuid.UUID           `gorm:"column:billing_address_id;type:uuid;not null"`
	Status             enums.OrderStatus   `gorm:"column:order_status;not null"`
	Notes              *string             `gorm:"column:notes"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	CancellationReason *string             `gorm:"column:cancellation_reason"`
	IsDeleted          bool                `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;references:ID"`
	Timeline           []OrderTimeline     `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem is the immutable purchase snapshot of one cart line.
type OrderItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	InventoryUnitID    *uuid.UUID      `gorm:"column:inventory_unit_id;type:uuid"`
	ProductName        string          `gorm:"column:product_name;not null"`
	ProductDescription *string         `gorm:"column:product_description"`
	Color              *string         `gorm:"column:color"`
	Quantity           int             `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Price              decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPercent    decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	FinalPrice         decimal.Decimal `gorm:"column:final_price;type:numeric(12,2);not null"`
	IsDeleted          bool            `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// OrderTimeline is one append-only entry in an order's status history.
// Sequence orders entries within an order; the highest sequence always carries
// the order's current status.
type OrderTimeline struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_timeline_sequence,priority:1"`
	Sequence  int               `gorm:"column:sequence;not null;uniqueIndex:ux_order_timeline_sequence,priority:2"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	Comment   *string           `gorm:"column:comment"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	ActorRole *enums.ActorRole  `gorm:"column:actor_role"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderTimeline) TableName() string {
	return "order_timeline"
}

func (t *OrderTimeline) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
