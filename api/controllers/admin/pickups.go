package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/fulfillment-backend/api/controllers/dto"
	"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	internalreturns "github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type schedulePickupRequest struct {
	ScheduledDate string `json:"scheduled_date" validate:"required"`
	TimeSlot      string `json:"time_slot" validate:"required"`
}

type reschedulePickupRequest struct {
	ScheduledDate string `json:"scheduled_date" validate:"required"`
	TimeSlot      string `json:"time_slot" validate:"required"`
	Reason        string `json:"reason" validate:"max=500"`
}

type pickupAgentRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"required,max=32"`
}

type pickupStatusRequest struct {
	Status string              `json:"status" validate:"required"`
	Notes  *string             `json:"notes" validate:"omitempty,max=1000"`
	Agent  *pickupAgentRequest `json:"agent" validate:"omitempty"`
}

func pickupAction[T any](
	svc internalreturns.Service,
	logg *logger.Logger,
	param string,
	status int,
	apply func(r *http.Request, svc internalreturns.Service, target actionTarget, payload T) (*models.ReturnPickup, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}
		target, err := resolveTarget(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload T
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pickup, err := apply(r, svc, target, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, dto.FromPickup(pickup))
	}
}

// SchedulePickup books the courier for an approved return.
func SchedulePickup(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return pickupAction(svc, logg, "returnId", http.StatusCreated, func(r *http.Request, svc internalreturns.Service, target actionTarget, p schedulePickupRequest) (*models.ReturnPickup, error) {
		day, slot, err := parseSlot(p.ScheduledDate, p.TimeSlot)
		if err != nil {
			return nil, err
		}
		return svc.SchedulePickup(r.Context(), internalreturns.ScheduleInput{
			ReturnID:      target.id,
			ScheduledDate: day,
			Slot:          slot,
			Actor:         target.actor,
		})
	})
}

func ReschedulePickup(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return pickupAction(svc, logg, "pickupId", http.StatusOK, func(r *http.Request, svc internalreturns.Service, target actionTarget, p reschedulePickupRequest) (*models.ReturnPickup, error) {
		day, slot, err := parseSlot(p.ScheduledDate, p.TimeSlot)
		if err != nil {
			return nil, err
		}
		return svc.ReschedulePickup(r.Context(), internalreturns.RescheduleInput{
			PickupID:      target.id,
			ScheduledDate: day,
			Slot:          slot,
			Reason:        strings.TrimSpace(p.Reason),
			Actor:         target.actor,
		})
	})
}

// UpdatePickupStatus records courier progress, optionally naming the agent.
func UpdatePickupStatus(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return pickupAction(svc, logg, "pickupId", http.StatusOK, func(r *http.Request, svc internalreturns.Service, target actionTarget, p pickupStatusRequest) (*models.ReturnPickup, error) {
		status, err := enums.ParsePickupStatus(normalize(p.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		input := internalreturns.PickupStatusInput{
			PickupID: target.id,
			Status:   status,
			Notes:    p.Notes,
			Actor:    target.actor,
		}
		if p.Agent != nil {
			input.Agent = &internalreturns.AgentDetails{Name: p.Agent.Name, Phone: p.Agent.Phone}
		}
		return svc.UpdatePickupStatus(r.Context(), input)
	})
}

func parseSlot(rawDate, rawSlot string) (day time.Time, slot enums.PickupSlot, err error) {
	day, err = validators.ParseDate("scheduled_date", rawDate)
	if err != nil {
		return day, slot, err
	}
	slot, err = enums.ParsePickupSlot(normalize(rawSlot))
	if err != nil {
		return day, slot, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid time slot").WithDetails(map[string]any{"field": "time_slot"})
	}
	return day, slot, nil
}
