package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Repository persists return requests, their pickups and pickup history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CreateReturn(ctx context.Context, ret *models.ReturnRequest) error
	FindReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error)
	LockReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error)
	FindReturnByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error)
	UpdateReturn(ctx context.Context, returnID uuid.UUID, from enums.ReturnRequestStatus, updates map[string]any) (int64, error)
	ListByStatus(ctx context.Context, status enums.ReturnRequestStatus, limit int) ([]models.ReturnRequest, error)
	CreatePickup(ctx context.Context, pickup *models.ReturnPickup) error
	FindPickup(ctx context.Context, pickupID uuid.UUID) (*models.ReturnPickup, error)
	LockPickup(ctx context.Context, pickupID uuid.UUID) (*models.ReturnPickup, error)
	FindPickupByReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnPickup, error)
	UpdatePickup(ctx context.Context, pickupID uuid.UUID, updates map[string]any) (int64, error)
	AppendPickupHistory(ctx context.Context, entry *models.ReturnPickupHistory) error
	ListPickupHistory(ctx context.Context, pickupID uuid.UUID) ([]models.ReturnPickupHistory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a return repository to the provided database handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", orderID, false).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateReturn(ctx context.Context, ret *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *repository) FindReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", returnID, false).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) LockReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", returnID, false).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) FindReturnByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND is_deleted = ?", orderID, false).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// UpdateReturn applies updates only while the row still carries from.
func (r *repository) UpdateReturn(ctx context.Context, returnID uuid.UUID, from enums.ReturnRequestStatus, updates map[string]any) (int64, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ? AND is_deleted = ?", returnID, from, false).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ListByStatus returns the oldest returns in status first.
func (r *repository) ListByStatus(ctx context.Context, status enums.ReturnRequestStatus, limit int) ([]models.ReturnRequest, error) {
	var rows []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_deleted = ?", status, false).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreatePickup(ctx context.Context, pickup *models.ReturnPickup) error {
	return r.db.WithContext(ctx).Create(pickup).Error
}

func (r *repository) FindPickup(ctx context.Context, pickupID uuid.UUID) (*models.ReturnPickup, error) {
	var pickup models.ReturnPickup
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", pickupID, false).
		First(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *repository) LockPickup(ctx context.Context, pickupID uuid.UUID) (*models.ReturnPickup, error) {
	var pickup models.ReturnPickup
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", pickupID, false).
		First(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *repository) FindPickupByReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnPickup, error) {
	var pickup models.ReturnPickup
	err := r.db.WithContext(ctx).
		Where("return_request_id = ? AND is_deleted = ?", returnID, false).
		First(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *repository) UpdatePickup(ctx context.Context, pickupID uuid.UUID, updates map[string]any) (int64, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.ReturnPickup{}).
		Where("id = ? AND is_deleted = ?", pickupID, false).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// AppendPickupHistory assigns the next sequence for the pickup. Callers hold
// the pickup row lock.
func (r *repository) AppendPickupHistory(ctx context.Context, entry *models.ReturnPickupHistory) error {
	var last int
	err := r.db.WithContext(ctx).
		Model(&models.ReturnPickupHistory{}).
		Where("pickup_id = ?", entry.PickupID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return err
	}
	entry.Sequence = last + 1
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListPickupHistory(ctx context.Context, pickupID uuid.UUID) ([]models.ReturnPickupHistory, error) {
	var rows []models.ReturnPickupHistory
	err := r.db.WithContext(ctx).
		Where("pickup_id = ?", pickupID).
		Order("sequence ASC").
		Find(&rows).Error
	return rows, err
}
