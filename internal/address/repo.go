package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// Repository reads address book rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Address, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Address, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("id IN ? AND user_id = ? AND is_deleted = ?", ids, userID, false).
		Find(&rows).Error
	return rows, err
}
