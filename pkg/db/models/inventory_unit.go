package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryUnit is the smallest stock-tracked entity (product x variant x size),
// or an opaque custom product. AvailableQuantity is only written through the
// inventory ledger.
type InventoryUnit struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         *uuid.UUID `gorm:"column:product_id;type:uuid"`
	VariantID         *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	SizeID            *uuid.UUID `gorm:"column:size_id;type:uuid"`
	SizeLabel         *string    `gorm:"column:size_label"`
	CustomProductID   *string    `gorm:"column:custom_product_id"`
	SKU               *string    `gorm:"column:sku"`
	AvailableQuantity int        `gorm:"column:available_quantity;not null;default:0"`
	IsDeleted         bool       `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *InventoryUnit) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// Label is a human readable identity used in stock error messages.
func (u InventoryUnit) Label() string {
	if u.CustomProductID != nil && *u.CustomProductID != "" {
		return "custom product " + *u.CustomProductID
	}
	label := "product "
	if u.SKU != nil && *u.SKU != "" {
		label += *u.SKU
	} else if u.ProductID != nil {
		label += u.ProductID.String()
	} else {
		label += u.ID.String()
	}
	if u.SizeLabel != nil && *u.SizeLabel != "" {
		label += " in size " + *u.SizeLabel
	}
	return label
}

// InventoryReservation records one debit of an InventoryUnit for an order item
// so restoration can be keyed off what was actually reserved.
type InventoryReservation struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID     uuid.UUID  `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex"`
	InventoryUnitID uuid.UUID  `gorm:"column:inventory_unit_id;type:uuid;not null"`
	Quantity        int        `gorm:"column:quantity;not null"`
	ReleasedAt      *time.Time `gorm:"column:released_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *InventoryReservation) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
