package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/inventory"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
	"github.com/angelmondragon/fulfillment-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryLedger reserves stock for new orders and restores it on cancellation.
type InventoryLedger interface {
	ReserveForOrderItem(ctx context.Context, tx *gorm.DB, req inventory.ReservationRequest) (int, error)
	ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]inventory.Restoration, error)
}

type numberSource interface {
	Next(ctx context.Context, tx *gorm.DB, at time.Time, resync bool) (string, error)
}

type transitionRecorder interface {
	OrderTransition(to string, err error)
}

// Service defines order creation and every status change.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Timeline(ctx context.Context, orderID uuid.UUID, actor Actor) ([]models.OrderTimeline, error)
	List(ctx context.Context, actor Actor, params pagination.Params) (*OrderList, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository     Repository
	Tx             txRunner
	Carts          cart.Reader
	Addresses      address.OwnershipChecker
	Inventory      InventoryLedger
	Outbox         outboxPublisher
	Numbers        numberSource
	ShippingCharge decimal.Decimal
	NumberRetries  int
	Metrics        transitionRecorder
	Logger         *logger.Logger
	Clock          func() time.Time
}

type service struct {
	repo           Repository
	tx             txRunner
	carts          cart.Reader
	addresses      address.OwnershipChecker
	inventory      InventoryLedger
	outbox         outboxPublisher
	numbers        numberSource
	shippingCharge decimal.Decimal
	numberRetries  int
	metrics        transitionRecorder
	logg           *logger.Logger
	now            func() time.Time
}

const defaultNumberRetries = 5

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address checker required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("order number source required")
	}
	if params.ShippingCharge.IsNegative() {
		return nil, fmt.Errorf("shipping charge must not be negative")
	}
	retries := params.NumberRetries
	if retries <= 0 {
		retries = defaultNumberRetries
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:           params.Repository,
		tx:             params.Tx,
		carts:          params.Carts,
		addresses:      params.Addresses,
		inventory:      params.Inventory,
		outbox:         params.Outbox,
		numbers:        params.Numbers,
		shippingCharge: params.ShippingCharge,
		numberRetries:  retries,
		metrics:        params.Metrics,
		logg:           params.Logger,
		now:            clock,
	}, nil
}

// Transition is the only write path for order_status. It must run inside the
// caller's transaction; the status, its timeline entry, any stock release and
// the outbox event commit together.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	order, err := s.transition(ctx, tx, input)
	if s.metrics != nil {
		s.metrics.OrderTransition(string(input.To), err)
	}
	return order, err
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order transition requires a transaction")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", input.To)
	}
	reason := strings.TrimSpace(input.CancellationReason)
	if input.To == enums.OrderStatusCancelled && reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.LockOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", input.OrderID)
		}
		return nil, err
	}

	from := order.Status
	if !CanTransition(from, input.To) {
		return nil, invalidTransition(from, input.To)
	}

	now := s.now().UTC()
	updates := map[string]any{
		"order_status": input.To,
		"updated_at":   now,
	}
	switch input.To {
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		order.DeliveredAt = &now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
		updates["cancellation_reason"] = reason
		order.CancelledAt = &now
		order.CancellationReason = &reason
	}

	affected, err := repo.UpdateStatus(ctx, order.ID, from, updates)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "order %s changed concurrently", order.ID)
	}
	order.Status = input.To
	order.UpdatedAt = now

	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		comment = defaultComment(input.To, reason)
	}
	if err := repo.AppendTimeline(ctx, timelineEntry(order.ID, input.To, comment, input.Actor)); err != nil {
		return nil, err
	}

	if input.To == enums.OrderStatusCancelled {
		restored, err := s.inventory.ReleaseForOrder(ctx, tx, order.ID)
		if err != nil {
			return nil, err
		}
		if s.logg != nil && len(restored) > 0 {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			logCtx = s.logg.WithField(logCtx, "restored_units", len(restored))
			s.logg.Info(logCtx, "order stock restored")
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(input.Actor),
		OccurredAt:    now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			To:          input.To,
			Comment:     comment,
			Reason:      reason,
			ChangedAt:   now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus is the staff path for fulfillment progress. Return and refund
// statuses are refused here; the return workflow drives them through Transition.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if !input.Actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", input.Status)
	}
	if IsReturnDriven(input.Status) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "order status %s is set by the return workflow", input.Status).
			WithDetails(map[string]any{"status": input.Status})
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.Transition(ctx, tx, TransitionInput{
			OrderID:            input.OrderID,
			To:                 input.Status,
			Comment:            input.Comment,
			CancellationReason: input.CancellationReason,
			Actor:              input.Actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel lets customers cancel their own PENDING orders and staff cancel any
// order that has not been delivered.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", input.OrderID)
			}
			return err
		}
		if !input.Actor.IsStaff() {
			if order.UserID != input.Actor.UserID {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", input.OrderID)
			}
			if order.Status != enums.OrderStatusPending {
				return pkgerrors.Newf(pkgerrors.CodeInvalidTransition,
					"cannot cancel order in status %s; only PENDING orders can be cancelled by the customer", order.Status).
					WithDetails(map[string]any{"from": order.Status, "to": enums.OrderStatusCancelled})
			}
		}
		updated, err = s.Transition(ctx, tx, TransitionInput{
			OrderID:            input.OrderID,
			To:                 enums.OrderStatusCancelled,
			CancellationReason: input.Reason,
			Actor:              input.Actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		return nil, err
	}
	if !actor.IsStaff() && order.UserID != actor.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}
	return order, nil
}

func (s *service) Timeline(ctx context.Context, orderID uuid.UUID, actor Actor) ([]models.OrderTimeline, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		return nil, err
	}
	if !actor.IsStaff() && order.UserID != actor.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}
	return s.repo.ListTimeline(ctx, orderID)
}

func (s *service) List(ctx context.Context, actor Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	return s.repo.ListForUser(ctx, actor.UserID, params)
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot transition from %s to %s", from, to).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": AllowedTransitions(from),
		})
}

func timelineEntry(orderID uuid.UUID, status enums.OrderStatus, comment string, actor Actor) *models.OrderTimeline {
	entry := &models.OrderTimeline{
		OrderID: orderID,
		Status:  status,
	}
	if comment != "" {
		entry.Comment = &comment
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		entry.ActorID = &id
	}
	if actor.Role != "" {
		role := actor.Role
		entry.ActorRole = &role
	}
	return entry
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil && actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func defaultComment(status enums.OrderStatus, reason string) string {
	switch status {
	case enums.OrderStatusCancelled:
		return "Order cancelled: " + reason
	case enums.OrderStatusConfirmed:
		return "Order confirmed"
	case enums.OrderStatusProcessing:
		return "Order is being processed"
	case enums.OrderStatusShipped:
		return "Order shipped"
	case enums.OrderStatusOutForDelivery:
		return "Order out for delivery"
	case enums.OrderStatusDelivered:
		return "Order delivered"
	}
	return "Status changed to " + string(status)
}
