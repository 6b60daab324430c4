package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActiveByUser loads the newest active cart for the user with its live items.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("created_at ASC").Order("id ASC")
		}).
		Where("user_id = ? AND status = ? AND is_deleted = ?", userID, enums.CartStatusActive, false).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ListProducts returns the live catalog rows for ids.
func (r *Repository) ListProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Find(&products).Error
	return products, err
}

// SoftDeleteItems retires every live item of the cart.
func (r *Repository) SoftDeleteItems(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND is_deleted = ?", cartID, false).
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": at,
		}).Error
}

// MarkConverted flips an active cart to CONVERTED_TO_ORDER and soft-deletes it.
func (r *Repository) MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ? AND is_deleted = ?", cartID, enums.CartStatusActive, false).
		Updates(map[string]any{
			"status":       enums.CartStatusConverted,
			"is_deleted":   true,
			"converted_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected, res.Error
}
