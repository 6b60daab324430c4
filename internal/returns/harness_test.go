package returns

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/inventory"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/storage"
)

var deliveredAt = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type memoryEvidence struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  int
	puts    int
	deleted []string
}

func newMemoryEvidence() *memoryEvidence {
	return &memoryEvidence{objects: map[string][]byte{}}
}

func (m *memoryEvidence) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failOn > 0 && m.puts == m.failOn {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = data
	return &storage.Object{Key: key, URL: "https://cdn.test/" + key, Size: size, ContentType: contentType}, nil
}

func (m *memoryEvidence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryEvidence) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type fakeGateway struct {
	mu           sync.Mutex
	instructions []RefundInstruction
	status       enums.RefundStatus
	refundErr    error
	statusErr    error
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) Refund(_ context.Context, in RefundInstruction) (*RefundReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.instructions = append(f.instructions, in)
	return &RefundReceipt{ID: "re_" + in.ReturnID.String()[:8], Status: enums.RefundStatusPending}, nil
}

func (f *fakeGateway) Status(context.Context, string) (enums.RefundStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.status == "" {
		return enums.RefundStatusPending, nil
	}
	return f.status, nil
}

type harness struct {
	svc      Service
	orders   orders.Service
	conn     *gorm.DB
	clock    *testClock
	evidence *memoryEvidence
	gateway  *fakeGateway
	user     uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	clock := &testClock{now: deliveredAt}

	carts, err := cart.NewReader(cart.NewRepository(conn))
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(conn))
	require.NoError(t, err)
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	require.NoError(t, err)
	orderRepo := orders.NewRepository(conn)
	numbers, err := orders.NewNumberGenerator("ORD", orderRepo, nil)
	require.NoError(t, err)
	events := outbox.NewService(outbox.NewRepository(conn), nil)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository:     orderRepo,
		Tx:             client,
		Carts:          carts,
		Addresses:      addresses,
		Inventory:      ledger,
		Outbox:         events,
		Numbers:        numbers,
		ShippingCharge: decimal.RequireFromString("99.00"),
		Clock:          clock.Now,
	})
	require.NoError(t, err)

	evidence := newMemoryEvidence()
	gateway := &fakeGateway{}
	svc, err := NewService(ServiceParams{
		Repository:    NewRepository(conn),
		Tx:            client,
		Orders:        orderSvc,
		Outbox:        events,
		Evidence:      evidence,
		OnlineRefunds: gateway,
		Clock:         clock.Now,
	})
	require.NoError(t, err)

	return &harness{
		svc:      svc,
		orders:   orderSvc,
		conn:     conn,
		clock:    clock,
		evidence: evidence,
		gateway:  gateway,
		user:     uuid.New(),
	}
}

func (h *harness) staff() orders.Actor {
	return orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleStaff}
}

func (h *harness) customer() orders.Actor {
	return orders.Actor{UserID: h.user, Role: enums.ActorRoleCustomer}
}

// deliveredOrder places a two-unit order and walks it to DELIVERED at
// deliveredAt.
func (h *harness) deliveredOrder(t *testing.T, method enums.PaymentMethod) (*models.Order, models.InventoryUnit) {
	t.Helper()
	ctx := context.Background()
	h.clock.Set(deliveredAt.Add(-72 * time.Hour))

	addr := models.Address{UserID: h.user, FullName: "Kabir Sen", Line1: "12 Lake View", City: "Kolkata", State: "WB", PostalCode: "700029", Country: "IN"}
	require.NoError(t, h.conn.Create(&addr).Error)
	product := models.Product{Name: "Linen shirt", Price: decimal.RequireFromString("100.00"), DiscountPercent: decimal.RequireFromString("10")}
	require.NoError(t, h.conn.Create(&product).Error)
	size := "L"
	unit := models.InventoryUnit{ProductID: &product.ID, SizeLabel: &size, AvailableQuantity: 5}
	require.NoError(t, h.conn.Create(&unit).Error)
	c := models.Cart{UserID: h.user, Status: enums.CartStatusActive}
	require.NoError(t, h.conn.Create(&c).Error)
	require.NoError(t, h.conn.Create(&models.CartItem{CartID: c.ID, ProductID: product.ID, InventoryUnitID: &unit.ID, Quantity: 2}).Error)

	ref := "pi_" + uuid.NewString()[:8]
	order, err := h.orders.Create(ctx, orders.CreateOrderInput{
		UserID:            h.user,
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
		PaymentMethod:     method,
		PaymentReference:  &ref,
	})
	require.NoError(t, err)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusOutForDelivery,
	} {
		_, err := h.orders.UpdateStatus(ctx, orders.UpdateStatusInput{OrderID: order.ID, Status: status, Actor: h.staff()})
		require.NoError(t, err)
	}
	h.clock.Set(deliveredAt)
	_, err = h.orders.UpdateStatus(ctx, orders.UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusDelivered, Actor: h.staff()})
	require.NoError(t, err)
	return order, unit
}

func (h *harness) returnInput(orderID uuid.UUID, images int) CreateReturnInput {
	input := CreateReturnInput{
		UserID:      h.user,
		OrderID:     orderID,
		Reason:      "Wrong size",
		Description: "Collar is much tighter than the size chart says",
	}
	for i := 0; i < images; i++ {
		data := []byte(fmt.Sprintf("jpeg-%d", i))
		input.Images = append(input.Images, EvidenceFile{
			Filename:    fmt.Sprintf("IMG_%d.JPG", i),
			ContentType: "image/jpeg",
			Size:        int64(len(data)),
			Content:     bytes.NewReader(data),
		})
	}
	return input
}

// requestedReturn opens a return one day after delivery.
func (h *harness) requestedReturn(t *testing.T, method enums.PaymentMethod) (*models.ReturnRequest, *models.Order) {
	t.Helper()
	order, _ := h.deliveredOrder(t, method)
	h.clock.Set(deliveredAt.Add(24 * time.Hour))
	ret, err := h.svc.Create(context.Background(), h.returnInput(order.ID, 1))
	require.NoError(t, err)
	return ret, order
}

// receivedReturn walks a return through approval, pickup and warehouse receipt.
func (h *harness) receivedReturn(t *testing.T, method enums.PaymentMethod) (*models.ReturnRequest, *models.Order) {
	t.Helper()
	ctx := context.Background()
	ret, order := h.requestedReturn(t, method)
	pickupDay := h.clock.Now().Add(48 * time.Hour)

	_, err := h.svc.Approve(ctx, ApproveInput{ReturnID: ret.ID, PickupDate: pickupDay, Actor: h.staff()})
	require.NoError(t, err)
	pickup, err := h.svc.SchedulePickup(ctx, ScheduleInput{ReturnID: ret.ID, ScheduledDate: pickupDay, Slot: enums.PickupSlotMorning, Actor: h.staff()})
	require.NoError(t, err)
	_, err = h.svc.UpdatePickupStatus(ctx, PickupStatusInput{PickupID: pickup.ID, Status: enums.PickupStatusCompleted, Actor: h.staff()})
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, ReturnStatusInput{ReturnID: ret.ID, Status: enums.ReturnStatusReceived, Actor: h.staff()})
	require.NoError(t, err)
	return h.reloadReturn(t, ret.ID), order
}

func (h *harness) reloadReturn(t *testing.T, id uuid.UUID) *models.ReturnRequest {
	t.Helper()
	var ret models.ReturnRequest
	require.NoError(t, h.conn.First(&ret, "id = ?", id).Error)
	return &ret
}

func (h *harness) orderStatus(t *testing.T, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.First(&order, "id = ?", id).Error)
	return order.Status
}

func (h *harness) timeline(t *testing.T, orderID uuid.UUID) []models.OrderTimeline {
	t.Helper()
	var rows []models.OrderTimeline
	require.NoError(t, h.conn.Where("order_id = ?", orderID).Order("sequence ASC").Find(&rows).Error)
	return rows
}

func (h *harness) historyCount(t *testing.T, pickupID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.ReturnPickupHistory{}).Where("pickup_id = ?", pickupID).Count(&n).Error)
	return n
}

func (h *harness) available(t *testing.T, unitID uuid.UUID) int {
	t.Helper()
	var unit models.InventoryUnit
	require.NoError(t, h.conn.First(&unit, "id = ?", unitID).Error)
	return unit.AvailableQuantity
}
