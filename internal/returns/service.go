package returns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/fulfillment-backend/pkg/db/types"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/storage"
	"github.com/angelmondragon/fulfillment-backend/pkg/validation"
)

const defaultReturnWindow = 7 * 24 * time.Hour

var returnOrderKey = dbpkg.UniqueKey{
	Constraint: "ux_return_requests_order",
	Columns:    []string{"return_requests.order_id"},
}

// MaxEvidenceImages caps the images attached to one return request.
const MaxEvidenceImages = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderTransitioner is the order state machine entry point used for every
// order status change a return causes.
type OrderTransitioner interface {
	Transition(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

// EvidenceStore keeps return evidence images.
type EvidenceStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

type workflowRecorder interface {
	ReturnStatus(status string)
	Refund(gateway string, err error)
}

// Service runs the return workflow: requests, courier pickups, quality checks
// and refunds.
type Service interface {
	Create(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error)
	Approve(ctx context.Context, input ApproveInput) (*models.ReturnRequest, error)
	Reject(ctx context.Context, input RejectInput) (*models.ReturnRequest, error)
	UpdateStatus(ctx context.Context, input ReturnStatusInput) (*models.ReturnRequest, error)
	Get(ctx context.Context, returnID uuid.UUID, actor orders.Actor) (*models.ReturnRequest, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.ReturnRequest, error)

	SchedulePickup(ctx context.Context, input ScheduleInput) (*models.ReturnPickup, error)
	ReschedulePickup(ctx context.Context, input RescheduleInput) (*models.ReturnPickup, error)
	UpdatePickupStatus(ctx context.Context, input PickupStatusInput) (*models.ReturnPickup, error)
	GetPickup(ctx context.Context, pickupID uuid.UUID, actor orders.Actor) (*models.ReturnPickup, error)
	PickupHistory(ctx context.Context, pickupID uuid.UUID, actor orders.Actor) ([]models.ReturnPickupHistory, error)

	ProcessQualityCheck(ctx context.Context, input QualityCheckInput) (*models.ReturnRequest, error)
	UpdateRefundStatus(ctx context.Context, input RefundStatusInput) (*models.ReturnRequest, error)
	ReconcileRefunds(ctx context.Context, limit int) (ReconcileResult, error)
}

// ServiceParams wires the return service.
type ServiceParams struct {
	Repository    Repository
	Tx            txRunner
	Orders        OrderTransitioner
	Outbox        outboxPublisher
	Evidence      EvidenceStore
	OnlineRefunds RefundGateway
	ManualRefunds RefundGateway
	ReturnWindow  time.Duration
	Metrics       workflowRecorder
	Logger        *logger.Logger
	Clock         func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	orders   OrderTransitioner
	outbox   outboxPublisher
	evidence EvidenceStore
	online   RefundGateway
	manual   RefundGateway
	window   time.Duration
	metrics  workflowRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the return service. Evidence and OnlineRefunds may be nil;
// requests that need them then fail with an external collaborator error.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	manual := params.ManualRefunds
	if manual == nil {
		manual = ManualGateway{}
	}
	window := params.ReturnWindow
	if window <= 0 {
		window = defaultReturnWindow
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repository,
		tx:       params.Tx,
		orders:   params.Orders,
		outbox:   params.Outbox,
		evidence: params.Evidence,
		online:   params.OnlineRefunds,
		manual:   manual,
		window:   window,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      clock,
	}, nil
}

// Create opens a return for a delivered order inside its return window.
// Evidence is uploaded before the transaction opens; if the transaction then
// fails the uploaded objects are removed again.
func (s *service) Create(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	input.Description = strings.TrimSpace(input.Description)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	for _, img := range input.Images {
		if !strings.HasPrefix(strings.ToLower(img.ContentType), "image/") {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "evidence %s must be an image", img.Filename)
		}
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, orderLookupError(err, input.OrderID)
	}
	if order.UserID != input.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", input.OrderID)
	}
	if _, err := s.repo.FindReturnByOrder(ctx, order.ID); err == nil {
		return nil, duplicateReturn(order.ID)
	} else if !dbpkg.IsNotFound(err) {
		return nil, err
	}
	if err := s.checkWindow(order); err != nil {
		return nil, err
	}

	uploaded, err := s.uploadEvidence(ctx, order.ID, input.Images)
	if err != nil {
		return nil, err
	}

	actor := orders.Actor{UserID: input.UserID, Role: enums.ActorRoleCustomer}
	var created *models.ReturnRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return orderLookupError(err, input.OrderID)
		}
		if err := s.checkWindow(order); err != nil {
			return err
		}

		if _, err := s.orders.Transition(ctx, tx, orders.TransitionInput{
			OrderID: order.ID,
			To:      enums.OrderStatusReturnRequested,
			Comment: "Return requested: " + input.Reason,
			Actor:   actor,
		}); err != nil {
			return err
		}

		urls := make(dbtypes.StringList, 0, len(uploaded))
		for _, obj := range uploaded {
			urls = append(urls, obj.URL)
		}
		ret := &models.ReturnRequest{
			OrderID:      order.ID,
			UserID:       order.UserID,
			Reason:       input.Reason,
			Description:  input.Description,
			Images:       urls,
			RefundAmount: order.FinalAmount,
			Status:       enums.ReturnStatusPending,
		}
		if err := repo.CreateReturn(ctx, ret); err != nil {
			if dbpkg.IsUniqueViolation(err, returnOrderKey) {
				return duplicateReturn(order.ID)
			}
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   ret.ID,
			Actor:         actorRef(actor),
			OccurredAt:    s.now().UTC(),
			Data: payloads.ReturnRequestedEvent{
				ReturnID:     ret.ID,
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				UserID:       order.UserID,
				Reason:       ret.Reason,
				RefundAmount: ret.RefundAmount,
				ImageCount:   len(urls),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		created = ret
		return nil
	})
	if err != nil {
		s.discardEvidence(ctx, uploaded)
		return nil, err
	}

	s.recordStatus(enums.ReturnStatusPending)
	if s.logg != nil {
		logCtx := s.logg.WithReturnID(ctx, created.ID.String())
		logCtx = s.logg.WithOrderID(logCtx, created.OrderID.String())
		s.logg.Info(logCtx, "return requested")
	}
	return created, nil
}

// Approve accepts a pending return. The order transition runs first so a
// repeated approval is refused by the order guard.
func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if dayOf(input.PickupDate).Before(dayOf(s.now())) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup date must not be in the past").
			WithDetails(map[string]any{"pickup_date": input.PickupDate.Format(time.DateOnly)})
	}

	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		comment = "Return approved"
	}
	pickupDate := input.PickupDate.UTC()
	updates := map[string]any{"pickup_date": pickupDate}
	if c := strings.TrimSpace(input.Comment); c != "" {
		updates["staff_comment"] = c
	}
	return s.advanceByID(ctx, input.ReturnID, hop{
		to:      enums.ReturnStatusApproved,
		updates: updates,
		comment: comment,
		actor:   input.Actor,
	})
}

// Reject closes a pending return; the order lands in RETURN_REJECTED.
func (s *service) Reject(ctx context.Context, input RejectInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	return s.advanceByID(ctx, input.ReturnID, hop{
		to:      enums.ReturnStatusRejected,
		updates: map[string]any{"rejection_reason": input.Reason},
		comment: "Return rejected: " + input.Reason,
		actor:   input.Actor,
	})
}

// UpdateStatus advances a return along its table, e.g. on warehouse receipt.
// Statuses with their own operation are refused here.
func (s *service) UpdateStatus(ctx context.Context, input ReturnStatusInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	switch input.Status {
	case enums.ReturnStatusApproved, enums.ReturnStatusRejected,
		enums.ReturnStatusPickupScheduled, enums.ReturnStatusQCPassed,
		enums.ReturnStatusQCFailed, enums.ReturnStatusRefundInitiated:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
			"status %s is set by its own operation", input.Status)
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown return status %q", input.Status)
	}

	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		comment = "Return " + strings.ToLower(strings.ReplaceAll(string(input.Status), "_", " "))
	}
	h := hop{to: input.Status, comment: comment, actor: input.Actor, updates: map[string]any{}}
	if input.Status == enums.ReturnStatusRefundCompleted {
		h.updates["refunded_at"] = s.now().UTC()
	}
	return s.advanceByID(ctx, input.ReturnID, h)
}

func (s *service) Get(ctx context.Context, returnID uuid.UUID, actor orders.Actor) (*models.ReturnRequest, error) {
	ret, err := s.repo.FindReturn(ctx, returnID)
	if err != nil {
		return nil, returnLookupError(err, returnID)
	}
	if !actor.IsStaff() && ret.UserID != actor.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "return %s not found", returnID)
	}
	return ret, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.ReturnRequest, error) {
	ret, err := s.repo.FindReturnByOrder(ctx, orderID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no return for order %s", orderID)
		}
		return nil, err
	}
	if !actor.IsStaff() && ret.UserID != actor.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no return for order %s", orderID)
	}
	return ret, nil
}

// hop is one return status change plus the column updates that accompany it.
type hop struct {
	to      enums.ReturnRequestStatus
	updates map[string]any
	comment string
	actor   orders.Actor
}

func (s *service) advanceByID(ctx context.Context, returnID uuid.UUID, h hop) (*models.ReturnRequest, error) {
	var updated *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ret, err := s.repo.WithTx(tx).LockReturn(ctx, returnID)
		if err != nil {
			return returnLookupError(err, returnID)
		}
		if err := s.advance(ctx, tx, ret, h); err != nil {
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

// advance moves ret to h.to inside tx. When the target maps to an order
// status the order transitions first; unmapped targets leave the order alone.
func (s *service) advance(ctx context.Context, tx *gorm.DB, ret *models.ReturnRequest, h hop) error {
	repo := s.repo.WithTx(tx)
	from := ret.Status

	var orderNumber string
	if orderTo, ok := OrderStatusFor(h.to); ok {
		order, err := s.orders.Transition(ctx, tx, orders.TransitionInput{
			OrderID: ret.OrderID,
			To:      orderTo,
			Comment: h.comment,
			Actor:   h.actor,
		})
		if err != nil {
			return err
		}
		orderNumber = order.OrderNumber
	}
	if !CanTransition(from, h.to) {
		return invalidTransition(from, h.to)
	}

	updates := make(map[string]any, len(h.updates)+2)
	for k, v := range h.updates {
		updates[k] = v
	}
	updates["status"] = h.to
	updates["updated_at"] = s.now().UTC()

	affected, err := repo.UpdateReturn(ctx, ret.ID, from, updates)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "return %s changed concurrently", ret.ID)
	}
	applyReturnUpdates(ret, updates)

	if orderNumber == "" {
		order, err := repo.FindOrder(ctx, ret.OrderID)
		if err != nil {
			return orderLookupError(err, ret.OrderID)
		}
		orderNumber = order.OrderNumber
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventReturnStatusChanged,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   ret.ID,
		Actor:         actorRef(h.actor),
		OccurredAt:    s.now().UTC(),
		Data: payloads.ReturnStatusChangedEvent{
			ReturnID:    ret.ID,
			OrderID:     ret.OrderID,
			OrderNumber: orderNumber,
			UserID:      ret.UserID,
			From:        from,
			To:          h.to,
			Comment:     h.comment,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	s.recordStatus(h.to)
	if s.logg != nil {
		logCtx := s.logg.WithReturnID(ctx, ret.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": h.to})
		s.logg.Info(logCtx, "return status changed")
	}
	return nil
}

func (s *service) checkWindow(order *models.Order) error {
	if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
		return pkgerrors.Newf(pkgerrors.CodeReturnWindowExpired,
			"order %s is %s; returns can only be requested for delivered orders", order.OrderNumber, order.Status).
			WithDetails(map[string]any{"order_status": order.Status})
	}
	deadline := order.DeliveredAt.Add(s.window)
	if s.now().After(deadline) {
		return pkgerrors.Newf(pkgerrors.CodeReturnWindowExpired,
			"return window for order %s closed at %s", order.OrderNumber, deadline.UTC().Format(time.RFC3339)).
			WithDetails(map[string]any{
				"delivered_at": order.DeliveredAt.UTC().Format(time.RFC3339),
				"deadline":     deadline.UTC().Format(time.RFC3339),
			})
	}
	return nil
}

func (s *service) uploadEvidence(ctx context.Context, orderID uuid.UUID, files []EvidenceFile) ([]*storage.Object, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.evidence == nil {
		return nil, pkgerrors.New(pkgerrors.CodeExternal, "evidence storage is not configured")
	}
	uploaded := make([]*storage.Object, 0, len(files))
	for _, file := range files {
		key := fmt.Sprintf("returns/%s/%s%s", orderID, uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
		obj, err := s.evidence.Put(ctx, key, file.Content, file.Size, file.ContentType)
		if err != nil {
			s.discardEvidence(ctx, uploaded)
			return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "evidence upload failed").
				WithDetails(map[string]any{"filename": file.Filename})
		}
		uploaded = append(uploaded, obj)
	}
	return uploaded, nil
}

// discardEvidence removes objects whose return was never committed.
func (s *service) discardEvidence(ctx context.Context, objects []*storage.Object) {
	for _, obj := range objects {
		if err := s.evidence.Delete(ctx, obj.Key); err != nil && s.logg != nil {
			logCtx := s.logg.WithField(ctx, "object_key", obj.Key)
			s.logg.Warn(logCtx, "orphaned return evidence left in storage")
		}
	}
}

func (s *service) recordStatus(status enums.ReturnRequestStatus) {
	if s.metrics != nil {
		s.metrics.ReturnStatus(string(status))
	}
}

func applyReturnUpdates(ret *models.ReturnRequest, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "status":
			ret.Status = v.(enums.ReturnRequestStatus)
		case "updated_at":
			ret.UpdatedAt = v.(time.Time)
		case "pickup_date":
			t := v.(time.Time)
			ret.PickupDate = &t
		case "rejection_reason":
			r := v.(string)
			ret.RejectionReason = &r
		case "staff_comment":
			c := v.(string)
			ret.StaffComment = &c
		case "qc_status":
			q := v.(enums.QCStatus)
			ret.QCStatus = &q
		case "qc_notes":
			n := v.(string)
			ret.QCNotes = &n
		case "qc_at":
			t := v.(time.Time)
			ret.QCAt = &t
		case "refund_id":
			id := v.(string)
			ret.RefundID = &id
		case "refunded_at":
			t := v.(time.Time)
			ret.RefundedAt = &t
		}
	}
}

func invalidTransition(from, to enums.ReturnRequestStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot transition return from %s to %s", from, to).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": AllowedTransitions(from),
		})
}

func duplicateReturn(orderID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "a return already exists for order %s", orderID)
}

func orderLookupError(err error, orderID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}
	return err
}

func returnLookupError(err error, returnID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "return %s not found", returnID)
	}
	return err
}

func actorRef(actor orders.Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil && actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
