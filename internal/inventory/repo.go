package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// Repository is the only code path that writes inventory_units.available_quantity.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindUnit(ctx context.Context, unitID uuid.UUID) (*models.InventoryUnit, error)
	LockUnit(ctx context.Context, unitID uuid.UUID) (*models.InventoryUnit, error)
	FindUnitByProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, sizeID uuid.UUID) (*models.InventoryUnit, error)
	FindUnitByCustomProduct(ctx context.Context, customProductID string) (*models.InventoryUnit, error)
	Decrement(ctx context.Context, unitID uuid.UUID, qty int) (int64, error)
	Increment(ctx context.Context, unitID uuid.UUID, qty int) (int64, error)
	CreateReservation(ctx context.Context, reservation *models.InventoryReservation) error
	LockOpenReservations(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error)
	MarkReleased(ctx context.Context, reservationID uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindUnit(ctx context.Context, unitID uuid.UUID) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", unitID, false).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// LockUnit reads the unit with a row lock held until the surrounding
// transaction ends. On SQLite the lock clause is dropped by the dialect and the
// single-writer database provides the same serialization.
func (r *repository) LockUnit(ctx context.Context, unitID uuid.UUID) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", unitID, false).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindUnitByProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, sizeID uuid.UUID) (*models.InventoryUnit, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ? AND size_id = ? AND is_deleted = ?", productID, sizeID, false)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}
	var unit models.InventoryUnit
	if err := query.First(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindUnitByCustomProduct(ctx context.Context, customProductID string) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	err := r.db.WithContext(ctx).
		Where("custom_product_id = ? AND is_deleted = ?", customProductID, false).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// Decrement subtracts qty only when enough stock remains; zero rows affected
// means the guard rejected it.
func (r *repository) Decrement(ctx context.Context, unitID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryUnit{}).
		Where("id = ? AND is_deleted = ? AND available_quantity >= ?", unitID, false, qty).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity - ?", qty),
			"updated_at":         time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) Increment(ctx context.Context, unitID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryUnit{}).
		Where("id = ? AND is_deleted = ?", unitID, false).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
			"updated_at":         time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.InventoryReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) LockOpenReservations(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND released_at IS NULL", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// MarkReleased stamps released_at once; a second call affects zero rows.
func (r *repository) MarkReleased(ctx context.Context, reservationID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryReservation{}).
		Where("id = ? AND released_at IS NULL", reservationID).
		Update("released_at", at)
	return res.RowsAffected, res.Error
}
