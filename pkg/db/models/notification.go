package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Notification records one outbound customer message produced from a domain
// event. EventID is unique so a redelivered event is never mailed twice.
type Notification struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	EventID   string                `gorm:"column:event_id;not null;uniqueIndex:ux_notifications_event"`
	EventType enums.OutboxEventType `gorm:"column:event_type;not null"`
	UserID    uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	OrderID   *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Recipient string                `gorm:"column:recipient;not null"`
	Subject   string                `gorm:"column:subject;not null"`
	Body      string                `gorm:"column:body;not null"`
	SentAt    *time.Time            `gorm:"column:sent_at"`
	LastError *string               `gorm:"column:last_error"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
