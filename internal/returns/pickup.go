package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/validation"
)

var pickupReturnKey = dbpkg.UniqueKey{
	Constraint: "ux_return_pickups_return_request",
	Columns:    []string{"return_pickups.return_request_id"},
}

// SchedulePickup books the courier for an approved return. The pickup row, its
// first history row and the return/order cascade commit together.
func (s *service) SchedulePickup(ctx context.Context, input ScheduleInput) (*models.ReturnPickup, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := s.validateSlot(input, input.ScheduledDate, input.Slot); err != nil {
		return nil, err
	}

	var scheduled *models.ReturnPickup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.LockReturn(ctx, input.ReturnID)
		if err != nil {
			return returnLookupError(err, input.ReturnID)
		}
		if ret.Status != enums.ReturnStatusApproved {
			return invalidTransition(ret.Status, enums.ReturnStatusPickupScheduled)
		}
		if _, err := repo.FindPickupByReturn(ctx, ret.ID); err == nil {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "return %s already has a pickup", ret.ID)
		} else if !dbpkg.IsNotFound(err) {
			return err
		}

		pickup := &models.ReturnPickup{
			ReturnRequestID: ret.ID,
			ScheduledDate:   dayOf(input.ScheduledDate),
			Slot:            input.Slot,
			Status:          enums.PickupStatusScheduled,
		}
		if err := repo.CreatePickup(ctx, pickup); err != nil {
			if dbpkg.IsUniqueViolation(err, pickupReturnKey) {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "return %s already has a pickup", ret.ID)
			}
			return err
		}
		if err := s.recordPickup(ctx, tx, pickup, ret, input.Actor); err != nil {
			return err
		}

		comment := fmt.Sprintf("Pickup scheduled for %s (%s)", pickup.ScheduledDate.Format(time.DateOnly), pickup.Slot)
		if err := s.advance(ctx, tx, ret, hop{
			to:      enums.ReturnStatusPickupScheduled,
			updates: map[string]any{},
			comment: comment,
			actor:   input.Actor,
		}); err != nil {
			return err
		}
		scheduled = pickup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scheduled, nil
}

// ReschedulePickup moves an open pickup. Every reschedule counts as an attempt.
func (s *service) ReschedulePickup(ctx context.Context, input RescheduleInput) (*models.ReturnPickup, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := s.validateSlot(input, input.ScheduledDate, input.Slot); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"status":         enums.PickupStatusRescheduled,
		"scheduled_date": dayOf(input.ScheduledDate),
		"time_slot":      input.Slot,
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		updates["notes"] = reason
	}
	return s.mutatePickup(ctx, input.PickupID, input.Actor, func(p *models.ReturnPickup) (map[string]any, error) {
		updates["attempt_count"] = p.AttemptCount + 1
		return updates, nil
	})
}

// UpdatePickupStatus records courier progress. ATTEMPTED bumps the attempt
// counter; COMPLETED also moves the return to PICKUP_COMPLETED.
func (s *service) UpdatePickupStatus(ctx context.Context, input PickupStatusInput) (*models.ReturnPickup, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	switch input.Status {
	case enums.PickupStatusScheduled, enums.PickupStatusRescheduled:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "use the schedule operations to set %s", input.Status)
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown pickup status %q", input.Status)
	}

	now := s.now().UTC()
	return s.mutatePickup(ctx, input.PickupID, input.Actor, func(p *models.ReturnPickup) (map[string]any, error) {
		updates := map[string]any{"status": input.Status}
		if input.Notes != nil {
			updates["notes"] = strings.TrimSpace(*input.Notes)
		}
		if input.Agent != nil {
			updates["agent_name"] = strings.TrimSpace(input.Agent.Name)
			updates["agent_phone"] = strings.TrimSpace(input.Agent.Phone)
		}
		if input.Status == enums.PickupStatusAttempted {
			updates["attempt_count"] = p.AttemptCount + 1
		}
		if input.Status == enums.PickupStatusCompleted {
			updates["completed_at"] = now
		}
		return updates, nil
	})
}

func (s *service) GetPickup(ctx context.Context, pickupID uuid.UUID, actor orders.Actor) (*models.ReturnPickup, error) {
	pickup, err := s.repo.FindPickup(ctx, pickupID)
	if err != nil {
		return nil, pickupLookupError(err, pickupID)
	}
	if !actor.IsStaff() {
		ret, err := s.repo.FindReturn(ctx, pickup.ReturnRequestID)
		if err != nil || ret.UserID != actor.UserID {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "pickup %s not found", pickupID)
		}
	}
	return pickup, nil
}

func (s *service) PickupHistory(ctx context.Context, pickupID uuid.UUID, actor orders.Actor) ([]models.ReturnPickupHistory, error) {
	if _, err := s.GetPickup(ctx, pickupID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListPickupHistory(ctx, pickupID)
}

// mutatePickup locks the pickup, applies the updates built by change, writes
// exactly one history row and cascades completion to the return.
func (s *service) mutatePickup(
	ctx context.Context,
	pickupID uuid.UUID,
	actor orders.Actor,
	change func(p *models.ReturnPickup) (map[string]any, error),
) (*models.ReturnPickup, error) {
	var updated *models.ReturnPickup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pickup, err := repo.LockPickup(ctx, pickupID)
		if err != nil {
			return pickupLookupError(err, pickupID)
		}
		if pickup.Status.IsClosed() {
			return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "pickup %s is %s and cannot change", pickup.ID, pickup.Status).
				WithDetails(map[string]any{"status": pickup.Status})
		}

		updates, err := change(pickup)
		if err != nil {
			return err
		}
		updates["updated_at"] = s.now().UTC()
		affected, err := repo.UpdatePickup(ctx, pickup.ID, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "pickup %s changed concurrently", pickup.ID)
		}
		applyPickupUpdates(pickup, updates)

		ret, err := repo.LockReturn(ctx, pickup.ReturnRequestID)
		if err != nil {
			return returnLookupError(err, pickup.ReturnRequestID)
		}
		if err := s.recordPickup(ctx, tx, pickup, ret, actor); err != nil {
			return err
		}

		if pickup.Status == enums.PickupStatusCompleted {
			if err := s.advance(ctx, tx, ret, hop{
				to:      enums.ReturnStatusPickupCompleted,
				updates: map[string]any{},
				comment: "Return picked up",
				actor:   actor,
			}); err != nil {
				return err
			}
		}
		updated = pickup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// recordPickup writes the history row mirroring pickup and queues its event.
func (s *service) recordPickup(ctx context.Context, tx *gorm.DB, pickup *models.ReturnPickup, ret *models.ReturnRequest, actor orders.Actor) error {
	entry := &models.ReturnPickupHistory{
		PickupID:      pickup.ID,
		Status:        pickup.Status,
		ScheduledDate: pickup.ScheduledDate,
		Slot:          pickup.Slot,
		AttemptCount:  pickup.AttemptCount,
		AgentName:     pickup.AgentName,
		AgentPhone:    pickup.AgentPhone,
		Notes:         pickup.Notes,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		entry.ActorID = &id
	}
	if err := s.repo.WithTx(tx).AppendPickupHistory(ctx, entry); err != nil {
		return err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventPickupUpdated,
		AggregateType: enums.AggregateReturnPickup,
		AggregateID:   pickup.ID,
		Actor:         actorRef(actor),
		OccurredAt:    s.now().UTC(),
		Data: payloads.PickupUpdatedEvent{
			PickupID:      pickup.ID,
			ReturnID:      ret.ID,
			UserID:        ret.UserID,
			Status:        pickup.Status,
			ScheduledDate: pickup.ScheduledDate,
			Slot:          pickup.Slot,
			AttemptCount:  pickup.AttemptCount,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithReturnID(ctx, ret.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"pickup_id":     pickup.ID.String(),
			"pickup_status": pickup.Status,
			"attempt_count": pickup.AttemptCount,
		})
		s.logg.Info(logCtx, "pickup updated")
	}
	return nil
}

func (s *service) validateSlot(input any, date time.Time, slot enums.PickupSlot) error {
	if err := validation.Struct(input); err != nil {
		return err
	}
	if !slot.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown pickup slot %q", slot)
	}
	if dayOf(date).Before(dayOf(s.now())) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup date must not be in the past").
			WithDetails(map[string]any{"scheduled_date": date.Format(time.DateOnly)})
	}
	return nil
}

func applyPickupUpdates(p *models.ReturnPickup, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "status":
			p.Status = v.(enums.PickupStatus)
		case "scheduled_date":
			p.ScheduledDate = v.(time.Time)
		case "time_slot":
			p.Slot = v.(enums.PickupSlot)
		case "attempt_count":
			p.AttemptCount = v.(int)
		case "notes":
			n := v.(string)
			p.Notes = &n
		case "agent_name":
			n := v.(string)
			p.AgentName = &n
		case "agent_phone":
			n := v.(string)
			p.AgentPhone = &n
		case "completed_at":
			t := v.(time.Time)
			p.CompletedAt = &t
		case "updated_at":
			p.UpdatedAt = v.(time.Time)
		}
	}
}

func pickupLookupError(err error, pickupID uuid.UUID) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "pickup %s not found", pickupID)
	}
	return err
}
