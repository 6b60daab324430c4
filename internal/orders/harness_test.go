package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/inventory"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type harness struct {
	svc  Service
	conn *gorm.DB
	user uuid.UUID
	ship uuid.UUID
	bill uuid.UUID
}

type harnessOption func(*ServiceParams)

func withNumbers(src numberSource) harnessOption {
	return func(p *ServiceParams) { p.Numbers = src }
}

func withRepository(wrap func(Repository) Repository) harnessOption {
	return func(p *ServiceParams) { p.Repository = wrap(p.Repository) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)

	carts, err := cart.NewReader(cart.NewRepository(conn))
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(conn))
	require.NoError(t, err)
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	require.NoError(t, err)
	repo := NewRepository(conn)
	numbers, err := NewNumberGenerator("ORD", repo, nil)
	require.NoError(t, err)

	params := ServiceParams{
		Repository:     repo,
		Tx:             client,
		Carts:          carts,
		Addresses:      addresses,
		Inventory:      ledger,
		Outbox:         outbox.NewService(outbox.NewRepository(conn), nil),
		Numbers:        numbers,
		ShippingCharge: decimal.RequireFromString("99.00"),
		Clock:          func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	h := &harness{svc: svc, conn: conn, user: uuid.New()}
	h.ship = h.seedAddress(t, h.user)
	h.bill = h.seedAddress(t, h.user)
	return h
}

func (h *harness) seedAddress(t *testing.T, userID uuid.UUID) uuid.UUID {
	t.Helper()
	addr := models.Address{
		UserID:     userID,
		FullName:   "Meera Iyer",
		Line1:      "4 Residency Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
	}
	require.NoError(t, h.conn.Create(&addr).Error)
	return addr.ID
}

// seedUnit creates a product with one sized inventory unit.
func (h *harness) seedUnit(t *testing.T, price, discount string, stock int) (models.Product, models.InventoryUnit) {
	t.Helper()
	product := models.Product{
		Name:            "Cotton kurta",
		Price:           decimal.RequireFromString(price),
		DiscountPercent: decimal.RequireFromString(discount),
	}
	require.NoError(t, h.conn.Create(&product).Error)
	size := "S"
	sizeID := uuid.New()
	unit := models.InventoryUnit{
		ProductID:         &product.ID,
		SizeID:            &sizeID,
		SizeLabel:         &size,
		AvailableQuantity: stock,
	}
	require.NoError(t, h.conn.Create(&unit).Error)
	return product, unit
}

type cartLine struct {
	product models.Product
	unit    *models.InventoryUnit
	qty     int
}

func (h *harness) seedCart(t *testing.T, lines ...cartLine) models.Cart {
	t.Helper()
	c := models.Cart{UserID: h.user, Status: enums.CartStatusActive}
	require.NoError(t, h.conn.Create(&c).Error)
	for _, line := range lines {
		item := models.CartItem{CartID: c.ID, ProductID: line.product.ID, Quantity: line.qty}
		if line.unit != nil {
			item.InventoryUnitID = &line.unit.ID
		}
		require.NoError(t, h.conn.Create(&item).Error)
	}
	return c
}

func (h *harness) createInput() CreateOrderInput {
	return CreateOrderInput{
		UserID:            h.user,
		ShippingAddressID: h.ship,
		BillingAddressID:  h.bill,
		PaymentMethod:     enums.PaymentMethodCOD,
	}
}

// placeOrder creates a one-line order of qty units from a fresh unit.
func (h *harness) placeOrder(t *testing.T, qty, stock int) (*models.Order, models.InventoryUnit) {
	t.Helper()
	product, unit := h.seedUnit(t, "100.00", "10", stock)
	h.seedCart(t, cartLine{product: product, unit: &unit, qty: qty})
	order, err := h.svc.Create(context.Background(), h.createInput())
	require.NoError(t, err)
	return order, unit
}

func (h *harness) staff() Actor {
	return Actor{UserID: uuid.New(), Role: enums.ActorRoleStaff}
}

func (h *harness) customer() Actor {
	return Actor{UserID: h.user, Role: enums.ActorRoleCustomer}
}

func (h *harness) advance(t *testing.T, orderID uuid.UUID, statuses ...enums.OrderStatus) {
	t.Helper()
	for _, status := range statuses {
		_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID: orderID,
			Status:  status,
			Actor:   h.staff(),
		})
		require.NoError(t, err, "advance to %s", status)
	}
}

func (h *harness) available(t *testing.T, unitID uuid.UUID) int {
	t.Helper()
	var unit models.InventoryUnit
	require.NoError(t, h.conn.First(&unit, "id = ?", unitID).Error)
	return unit.AvailableQuantity
}

func (h *harness) reload(t *testing.T, orderID uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.First(&order, "id = ?", orderID).Error)
	return order
}

func (h *harness) timeline(t *testing.T, orderID uuid.UUID) []models.OrderTimeline {
	t.Helper()
	var rows []models.OrderTimeline
	require.NoError(t, h.conn.Where("order_id = ?", orderID).Order("sequence ASC").Find(&rows).Error)
	return rows
}

func (h *harness) outboxCount(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error)
	return count
}
