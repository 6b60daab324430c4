package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// SnapshotItem is one cart line with the catalog values current at read time.
type SnapshotItem struct {
	CartItemID         uuid.UUID
	ProductID          uuid.UUID
	InventoryUnitID    *uuid.UUID
	Color              *string
	Quantity           int
	ProductName        string
	ProductDescription *string
	UnitPrice          decimal.Decimal
	DiscountPercent    decimal.Decimal
}

// Snapshot is an immutable copy of a user's active cart.
type Snapshot struct {
	CartID uuid.UUID
	UserID uuid.UUID
	Items  []SnapshotItem
}

// Reader reads and retires active carts on behalf of order creation.
type Reader interface {
	ActiveSnapshot(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error)
	Retire(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, now time.Time) error
}

type reader struct {
	repo CartRepository
}

// NewReader builds the cart snapshot reader.
func NewReader(repo CartRepository) (Reader, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &reader{repo: repo}, nil
}

func (r *reader) ActiveSnapshot(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	repo := r.repo.WithTx(tx)

	cart, err := repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "no active cart for user")
		}
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items").
			WithDetails(map[string]any{"cart_id": cart.ID.String()})
	}

	productIDs := make([]uuid.UUID, 0, len(cart.Items))
	seen := make(map[uuid.UUID]struct{}, len(cart.Items))
	for _, item := range cart.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := repo.ListProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	catalog := make(map[uuid.UUID]int, len(products))
	for i := range products {
		catalog[products[i].ID] = i
	}

	snapshot := &Snapshot{
		CartID: cart.ID,
		UserID: cart.UserID,
		Items:  make([]SnapshotItem, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "cart item %s has non-positive quantity", item.ID)
		}
		idx, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodePrecondition, "product %s is no longer available", item.ProductID).
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		product := products[idx]
		snapshot.Items = append(snapshot.Items, SnapshotItem{
			CartItemID:         item.ID,
			ProductID:          item.ProductID,
			InventoryUnitID:    copyUUID(item.InventoryUnitID),
			Color:              copyString(item.Color),
			Quantity:           item.Quantity,
			ProductName:        product.Name,
			ProductDescription: copyString(product.Description),
			UnitPrice:          product.Price,
			DiscountPercent:    product.DiscountPercent,
		})
	}
	return snapshot, nil
}

func (r *reader) Retire(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, now time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "cart retirement requires a transaction")
	}
	repo := r.repo.WithTx(tx)
	at := now.UTC()
	if err := repo.SoftDeleteItems(ctx, cartID, at); err != nil {
		return err
	}
	affected, err := repo.MarkConverted(ctx, cartID, at)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "cart %s is no longer active", cartID)
	}
	return nil
}

func copyUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
