package admin

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/fulfillment-backend/api/controllers/dto"
		"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	internalreturns "github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type approveReturnRequest struct {
	PickupDate string `json:"pickup_date" validate:"required"`
	Comment    string `json:"comment" validate:"max=500"`
}

type rejectReturnRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type returnStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment" validate:"max=500"`
}

type qualityCheckRequest struct {
	Passed *bool  `json:"passed" validate:"required"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type refundStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// returnAction resolves the caller and return id, decodes the body and
// writes the return produced by apply.
func returnAction[T any](
	svc internalreturns.Service,
	logg *logger.Logger,
	apply func(r *http.Request, svc internalreturns.Service, target actionTarget, payload T) (*models.ReturnRequest, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}
		target, err := resolveTarget(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload T
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ret, err := apply(r, svc, target, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromReturn(ret))
	}
}

// ApproveReturn accepts a pending return and proposes the pickup date.
func ApproveReturn(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAction(svc, logg, func(r *http.Request, svc internalreturns.Service, target actionTarget, p approveReturnRequest) (*models.ReturnRequest, error) {
		day, err := validators.ParseDate("pickup_date", p.PickupDate)
		if err != nil {
			return nil, err
		}
		return svc.Approve(r.Context(), internalreturns.ApproveInput{
			ReturnID:   target.id,
			PickupDate: day,
			Comment:    strings.TrimSpace(p.Comment),
			Actor:      target.actor,
		})
	})
}

func RejectReturn(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAction(svc, logg, func(r *http.Request, svc internalreturns.Service, target actionTarget, p rejectReturnRequest) (*models.ReturnRequest, error) {
		return svc.Reject(r.Context(), internalreturns.RejectInput{
			ReturnID: target.id,
			Reason:   strings.TrimSpace(p.Reason),
			Actor:    target.actor,
		})
	})
}

// UpdateReturnStatus records warehouse-side progress such as RECEIVED.
func UpdateReturnStatus(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAction(svc, logg, func(r *http.Request, svc internalreturns.Service, target actionTarget, p returnStatusRequest) (*models.ReturnRequest, error) {
		status, err := enums.ParseReturnRequestStatus(normalize(p.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		return svc.UpdateStatus(r.Context(), internalreturns.ReturnStatusInput{
			ReturnID: target.id,
			Status:   status,
			Comment:  strings.TrimSpace(p.Comment),
			Actor:    target.actor,
		})
	})
}

// QualityCheck records the inspection result; a pass issues the refund.
func QualityCheck(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAction(svc, logg, func(r *http.Request, svc internalreturns.Service, target actionTarget, p qualityCheckRequest) (*models.ReturnRequest, error) {
		return svc.ProcessQualityCheck(r.Context(), internalreturns.QualityCheckInput{
			ReturnID: target.id,
			Passed:   *p.Passed,
			Notes:    strings.TrimSpace(p.Notes),
			Actor:    target.actor,
		})
	})
}

// UpdateRefundStatus applies a settlement report for an initiated refund.
func UpdateRefundStatus(svc internalreturns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAction(svc, logg, func(r *http.Request, svc internalreturns.Service, target actionTarget, p refundStatusRequest) (*models.ReturnRequest, error) {
		status, err := enums.ParseRefundStatus(p.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		return svc.UpdateRefundStatus(r.Context(), internalreturns.RefundStatusInput{
			ReturnID: target.id,
			Status:   status,
			Actor:    target.actor,
		})
	})
}
