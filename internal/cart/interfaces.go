package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the snapshot reader.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ListProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	SoftDeleteItems(ctx context.Context, cartID uuid.UUID, at time.Time) error
	MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) (int64, error)
}
