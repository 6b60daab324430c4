package returns

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/validation"
)

const defaultReconcileLimit = 50

// ProcessQualityCheck records the inspection of a received return. A pass
// issues the refund and moves return and order to REFUND_INITIATED; a failure
// ends the return at QC_FAILED and leaves the order where it is. A gateway
// error rolls the whole check back.
func (s *service) ProcessQualityCheck(ctx context.Context, input QualityCheckInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	input.Notes = strings.TrimSpace(input.Notes)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	qcStatus, to := enums.QCStatusFailed, enums.ReturnStatusQCFailed
	if input.Passed {
		qcStatus, to = enums.QCStatusPassed, enums.ReturnStatusQCPassed
	}

	var updated *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.LockReturn(ctx, input.ReturnID)
		if err != nil {
			return returnLookupError(err, input.ReturnID)
		}

		if err := s.advance(ctx, tx, ret, hop{
			to: to,
			updates: map[string]any{
				"qc_status": qcStatus,
				"qc_notes":  input.Notes,
				"qc_at":     s.now().UTC(),
			},
			comment: "Quality check " + strings.ToLower(string(qcStatus)),
			actor:   input.Actor,
		}); err != nil {
			return err
		}
		if !input.Passed {
			updated = ret
			return nil
		}

		order, err := repo.FindOrder(ctx, ret.OrderID)
		if err != nil {
			return orderLookupError(err, ret.OrderID)
		}
		gateway, err := s.gatewayFor(order.PaymentMethod)
		if err != nil {
			return err
		}
		receipt, err := gateway.Refund(ctx, RefundInstruction{
			ReturnID:         ret.ID,
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			PaymentMethod:    order.PaymentMethod,
			PaymentReference: derefString(order.PaymentReference),
			Amount:           ret.RefundAmount,
		})
		if s.metrics != nil {
			s.metrics.Refund(gateway.Name(), err)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeExternal, err, "refund gateway rejected the refund").
				WithDetails(map[string]any{"gateway": gateway.Name(), "return_id": ret.ID.String()})
		}

		if err := s.advance(ctx, tx, ret, hop{
			to:      enums.ReturnStatusRefundInitiated,
			updates: map[string]any{"refund_id": receipt.ID},
			comment: fmt.Sprintf("Refund initiated (%s)", receipt.ID),
			actor:   input.Actor,
		}); err != nil {
			return err
		}
		if err := s.emitRefund(ctx, tx, enums.EventRefundInitiated, ret, order, gateway.Name(), input.Actor); err != nil {
			return err
		}
		updated = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateRefundStatus applies a settlement report from the payment side. Only
// COMPLETED moves the workflow; pending and failed reports are refused so the
// return stays in REFUND_INITIATED for staff follow-up.
func (s *service) UpdateRefundStatus(ctx context.Context, input RefundStatusInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.Status != enums.RefundStatusCompleted {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "refund status %q cannot be applied; only COMPLETED is accepted", input.Status)
	}

	var updated *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.LockReturn(ctx, input.ReturnID)
		if err != nil {
			return returnLookupError(err, input.ReturnID)
		}
		refundID := derefString(ret.RefundID)
		if err := s.advance(ctx, tx, ret, hop{
			to:      enums.ReturnStatusRefundCompleted,
			updates: map[string]any{"refunded_at": s.now().UTC()},
			comment: fmt.Sprintf("Refund completed (%s)", refundID),
			actor:   input.Actor,
		}); err != nil {
			return err
		}
		order, err := repo.FindOrder(ctx, ret.OrderID)
		if err != nil {
			return orderLookupError(err, ret.OrderID)
		}
		if err := s.emitRefund(ctx, tx, enums.EventRefundCompleted, ret, order, "", input.Actor); err != nil {
			return err
		}
		updated = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReconcileRefunds polls the online gateway for returns waiting on settlement
// and completes the settled ones. Failures on one return do not stop the pass;
// they are combined into the returned error.
func (s *service) ReconcileRefunds(ctx context.Context, limit int) (ReconcileResult, error) {
	var result ReconcileResult
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	pending, err := s.repo.ListByStatus(ctx, enums.ReturnStatusRefundInitiated, limit)
	if err != nil {
		return result, err
	}

	var errs error
	for _, ret := range pending {
		if err := ctx.Err(); err != nil {
			return result, multierr.Append(errs, err)
		}
		result.Checked++

		order, err := s.repo.FindOrder(ctx, ret.OrderID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("return %s: %w", ret.ID, orderLookupError(err, ret.OrderID)))
			continue
		}
		if !order.PaymentMethod.IsOnline() || ret.RefundID == nil || s.online == nil {
			result.Pending++
			continue
		}

		status, err := s.online.Status(ctx, *ret.RefundID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("return %s: %w", ret.ID, err))
			continue
		}
		switch status {
		case enums.RefundStatusCompleted:
			if _, err := s.UpdateRefundStatus(ctx, RefundStatusInput{
				ReturnID: ret.ID,
				Status:   enums.RefundStatusCompleted,
				Actor:    orders.SystemActor(),
			}); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("return %s: %w", ret.ID, err))
				continue
			}
			result.Completed++
		case enums.RefundStatusFailed:
			result.Failed++
			if s.logg != nil {
				logCtx := s.logg.WithReturnID(ctx, ret.ID.String())
				logCtx = s.logg.WithField(logCtx, "refund_id", *ret.RefundID)
				s.logg.Warn(logCtx, "refund failed at gateway; needs staff follow-up")
			}
		default:
			result.Pending++
		}
	}
	return result, errs
}

func (s *service) gatewayFor(method enums.PaymentMethod) (RefundGateway, error) {
	if !method.IsOnline() {
		return s.manual, nil
	}
	if s.online == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeExternal, "no refund gateway configured for %s payments", method)
	}
	return s.online, nil
}

func (s *service) emitRefund(
	ctx context.Context,
	tx *gorm.DB,
	eventType enums.OutboxEventType,
	ret *models.ReturnRequest,
	order *models.Order,
	gateway string,
	actor orders.Actor,
) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   ret.ID,
		Actor:         actorRef(actor),
		OccurredAt:    s.now().UTC(),
		Data: payloads.RefundEvent{
			ReturnID:    ret.ID,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      ret.UserID,
			RefundID:    derefString(ret.RefundID),
			Amount:      ret.RefundAmount,
			Gateway:     gateway,
		},
	})
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
