package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem references a product, a quantity and optionally the concrete
// InventoryUnit (size/variant) the customer picked.
type CartItem struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CartID          uuid.UUID  `gorm:"column:cart_id;type:uuid;not null"`
	ProductID       uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	InventoryUnitID *uuid.UUID `gorm:"column:inventory_unit_id;type:uuid"`
	Color           *string    `gorm:"column:color"`
	Quantity        int        `gorm:"column:quantity;not null"`
	IsDeleted       bool       `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
