package orders

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/validation"
)

const (
	orderNumberSavepoint = "order_number"
	orderPlacedComment   = "Order placed"
)

var orderNumberKey = dbpkg.UniqueKey{
	Constraint: "orders_order_number_key",
	Columns:    []string{"orders.order_number"},
}

// Create converts the user's active cart into a PENDING order. Everything
// happens in one transaction: a failure at any step leaves cart, stock and
// orders untouched. It is not retried here because it is not idempotent.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	actor := Actor{UserID: input.UserID, Role: enums.ActorRoleCustomer}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.addresses.RequireOwned(ctx, tx, input.UserID, input.ShippingAddressID, input.BillingAddressID); err != nil {
			return err
		}

		snapshot, err := s.carts.ActiveSnapshot(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		for _, item := range snapshot.Items {
			if item.InventoryUnitID == nil {
				return pkgerrors.Newf(pkgerrors.CodeMissingSize, "size selection required for product %s", item.ProductName).
					WithDetails(map[string]any{
						"cart_item_id": item.CartItemID.String(),
						"product_id":   item.ProductID.String(),
					})
			}
		}

		now := s.now().UTC()
		items, totals := s.priceSnapshot(snapshot)

		if err := s.carts.Retire(ctx, tx, snapshot.CartID, now); err != nil {
			return err
		}

		order := &models.Order{
			UserID:            input.UserID,
			TotalAmount:       totals.TotalAmount,
			DiscountAmount:    totals.DiscountAmount,
			ShippingCharge:    totals.ShippingCharge,
			FinalAmount:       totals.FinalAmount,
			PaymentMethod:     input.PaymentMethod,
			PaymentReference:  trimmed(input.PaymentReference),
			ShippingAddressID: input.ShippingAddressID,
			BillingAddressID:  input.BillingAddressID,
			Status:            enums.OrderStatusPending,
			Notes:             trimmed(input.Notes),
		}
		if err := s.insertWithNumber(ctx, tx, order); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}
		if err := repo.AppendTimeline(ctx, timelineEntry(order.ID, enums.OrderStatusPending, orderPlacedComment, actor)); err != nil {
			return err
		}

		for _, item := range items {
			_, err := s.inventory.ReserveForOrderItem(ctx, tx, inventory.ReservationRequest{
				OrderID:     order.ID,
				OrderItemID: item.ID,
				UnitID:      *item.InventoryUnitID,
				Qty:         item.Quantity,
			})
			if err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        order.UserID,
				FinalAmount:   order.FinalAmount,
				PaymentMethod: order.PaymentMethod,
				ItemCount:     len(items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		order.Items = items
		created = order
		return nil
	})
	if s.metrics != nil {
		s.metrics.OrderTransition(string(enums.OrderStatusPending), err)
	}
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, created.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"order_number": created.OrderNumber,
			"item_count":   len(created.Items),
			"final_amount": created.FinalAmount.StringFixed(moneyScale),
		})
		s.logg.Info(logCtx, "order created")
	}
	return created, nil
}

func (s *service) priceSnapshot(snapshot *cart.Snapshot) ([]models.OrderItem, Totals) {
	items := make([]models.OrderItem, 0, len(snapshot.Items))
	lines := make([]LinePrice, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		line := PriceLine(item.UnitPrice, item.Quantity, item.DiscountPercent)
		lines = append(lines, line)
		items = append(items, models.OrderItem{
			ProductID:          item.ProductID,
			InventoryUnitID:    item.InventoryUnitID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			Color:              item.Color,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice.Round(moneyScale),
			Price:              line.Price,
			DiscountPercent:    item.DiscountPercent,
			FinalPrice:         line.FinalPrice,
		})
	}
	return items, SumTotals(lines, s.shippingCharge)
}

// insertWithNumber allocates an order number and inserts the order under a
// savepoint, retrying with a fresh number when another order took it.
func (s *service) insertWithNumber(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	var lastErr error
	for attempt := 1; attempt <= s.numberRetries; attempt++ {
		number, err := s.numbers.Next(ctx, tx, s.now(), attempt > 1)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		err = dbpkg.WithSavepoint(tx, orderNumberSavepoint, func(tx *gorm.DB) error {
			return repo.CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !dbpkg.IsUniqueViolation(err, orderNumberKey) {
			return err
		}
		lastErr = err
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_number": number,
				"attempt":      attempt,
			})
			s.logg.Warn(logCtx, "order number taken, retrying")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeBusy, lastErr,
		fmt.Sprintf("could not allocate an order number after %d attempts", s.numberRetries))
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}
