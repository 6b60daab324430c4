package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

type recorder interface {
	InventoryOperation(operation string, err error)
}

// ReservationRequest ties a reservation to the order item it serves.
type ReservationRequest struct {
	OrderID     uuid.UUID
	OrderItemID uuid.UUID
	UnitID      uuid.UUID
	Qty         int
}

// Restoration reports stock returned to a unit for one reservation.
type Restoration struct {
	ReservationID uuid.UUID
	OrderItemID   uuid.UUID
	UnitID        uuid.UUID
	Qty           int
	Available     int
}

// Ledger owns the per-unit stock counters. Every method runs on the caller's
// transaction so a failure anywhere in it rolls back the stock change too.
type Ledger struct {
	repo    Repository
	metrics recorder
	now     func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithRecorder reports every reserve/release outcome.
func WithRecorder(r recorder) Option {
	return func(l *Ledger) { l.metrics = r }
}

// WithClock overrides the clock used to stamp released reservations.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger builds a ledger over the inventory repository.
func NewLedger(repo Repository, opts ...Option) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	l := &Ledger{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Reserve locks the unit row and decrements it by qty, returning the new
// available quantity. It fails with INSUFFICIENT_STOCK when the result would
// be negative.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, qty int) (int, error) {
	remaining, err := l.reserve(ctx, tx, unitID, qty)
	l.record("reserve", err)
	return remaining, err
}

func (l *Ledger) reserve(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, qty int) (int, error) {
	if err := validate(tx, unitID, qty); err != nil {
		return 0, err
	}
	repo := l.repo.WithTx(tx)

	unit, err := repo.LockUnit(ctx, unitID)
	if err != nil {
		return 0, unitLookupError(unitID, err)
	}
	if unit.AvailableQuantity < qty {
		return 0, insufficient(unit, qty)
	}

	affected, err := repo.Decrement(ctx, unitID, qty)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, insufficient(unit, qty)
	}
	return unit.AvailableQuantity - qty, nil
}

// Release increments the unit by qty and returns the new available quantity.
// It does not check what was reserved; order code should use ReleaseForOrder.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, qty int) (int, error) {
	available, err := l.release(ctx, tx, unitID, qty)
	l.record("release", err)
	return available, err
}

func (l *Ledger) release(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, qty int) (int, error) {
	if err := validate(tx, unitID, qty); err != nil {
		return 0, err
	}
	repo := l.repo.WithTx(tx)

	affected, err := repo.Increment(ctx, unitID, qty)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, pkgerrors.Newf(pkgerrors.CodeNotFound, "inventory unit %s not found", unitID)
	}
	unit, err := repo.FindUnit(ctx, unitID)
	if err != nil {
		return 0, unitLookupError(unitID, err)
	}
	return unit.AvailableQuantity, nil
}

// ReserveForOrderItem reserves stock and records which order item holds it.
func (l *Ledger) ReserveForOrderItem(ctx context.Context, tx *gorm.DB, req ReservationRequest) (int, error) {
	if req.OrderID == uuid.Nil || req.OrderItemID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order and order item ids are required")
	}
	remaining, err := l.Reserve(ctx, tx, req.UnitID, req.Qty)
	if err != nil {
		return 0, err
	}
	reservation := &models.InventoryReservation{
		OrderID:         req.OrderID,
		OrderItemID:     req.OrderItemID,
		InventoryUnitID: req.UnitID,
		Quantity:        req.Qty,
	}
	if err := l.repo.WithTx(tx).CreateReservation(ctx, reservation); err != nil {
		return 0, err
	}
	return remaining, nil
}

// ReleaseForOrder restores every open reservation of the order exactly once.
// Calling it again, or for an order that never reserved stock, is a no-op.
func (l *Ledger) ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]Restoration, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory release requires a transaction")
	}
	repo := l.repo.WithTx(tx)

	open, err := repo.LockOpenReservations(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	restored := make([]Restoration, 0, len(open))
	for _, reservation := range open {
		marked, err := repo.MarkReleased(ctx, reservation.ID, now)
		if err != nil {
			return nil, err
		}
		if marked == 0 {
			continue
		}
		available, err := l.Release(ctx, tx, reservation.InventoryUnitID, reservation.Quantity)
		if err != nil {
			return nil, err
		}
		restored = append(restored, Restoration{
			ReservationID: reservation.ID,
			OrderItemID:   reservation.OrderItemID,
			UnitID:        reservation.InventoryUnitID,
			Qty:           reservation.Quantity,
			Available:     available,
		})
	}
	return restored, nil
}

// Available reads the current quantity outside of any reservation.
func (l *Ledger) Available(ctx context.Context, unitID uuid.UUID) (int, error) {
	unit, err := l.repo.FindUnit(ctx, unitID)
	if err != nil {
		return 0, unitLookupError(unitID, err)
	}
	return unit.AvailableQuantity, nil
}

func (l *Ledger) record(operation string, err error) {
	if l.metrics != nil {
		l.metrics.InventoryOperation(operation, err)
	}
}

func validate(tx *gorm.DB, unitID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "inventory mutation requires a transaction")
	}
	if unitID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory unit id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func unitLookupError(unitID uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "inventory unit %s not found", unitID)
	}
	return err
}

func insufficient(unit *models.InventoryUnit, requested int) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
		"insufficient quantity for %s: requested %d, available %d",
		unit.Label(), requested, unit.AvailableQuantity,
	).WithDetails(map[string]any{
		"inventory_unit_id": unit.ID.String(),
		"requested":         requested,
		"available":         unit.AvailableQuantity,
	})
}
