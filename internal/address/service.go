package address

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// OwnershipChecker confirms addresses belong to a user before they are
// referenced by an order.
type OwnershipChecker interface {
	RequireOwned(ctx context.Context, tx *gorm.DB, userID uuid.UUID, addressIDs ...uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the ownership checker over the address book table.
func NewService(repo Repository) (OwnershipChecker, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RequireOwned(ctx context.Context, tx *gorm.DB, userID uuid.UUID, addressIDs ...uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeValidation, "user id is required")
	}
	unique := make([]uuid.UUID, 0, len(addressIDs))
	seen := make(map[uuid.UUID]struct{}, len(addressIDs))
	for _, id := range addressIDs {
		if id == uuid.Nil {
			return errors.New(errors.CodeValidation, "address id is required")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return errors.New(errors.CodeValidation, "address id is required")
	}

	rows, err := s.repo.WithTx(tx).FindOwned(ctx, userID, unique)
	if err != nil {
		return err
	}
	owned := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		owned[row.ID] = struct{}{}
	}
	for _, id := range unique {
		if _, ok := owned[id]; !ok {
			return errors.Newf(errors.CodeAddressNotOwned, "address %s does not belong to user", id).
				WithDetails(map[string]any{"address_id": id.String()})
		}
	}
	return nil
}
