package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	internalorders "github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

type stubOrdersService struct {
	create   func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	cancel   func(ctx context.Context, input internalorders.CancelInput) (*models.Order, error)
	get      func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error)
	timeline func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) ([]models.OrderTimeline, error)
	list     func(ctx context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error)
}

func (s *stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	return s.create(ctx, input)
}

func (s *stubOrdersService) Transition(context.Context, *gorm.DB, internalorders.TransitionInput) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) UpdateStatus(context.Context, internalorders.UpdateStatusInput) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	return s.cancel(ctx, input)
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
	return s.get(ctx, orderID, actor)
}

func (s *stubOrdersService) Timeline(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) ([]models.OrderTimeline, error) {
	return s.timeline(ctx, orderID, actor)
}

func (s *stubOrdersService) List(ctx context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error) {
	return s.list(ctx, actor, params)
}

func asCustomer(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := middleware.WithRole(middleware.WithUserID(req.Context(), userID.String()), string(enums.ActorRoleCustomer))
	return req.WithContext(ctx)
}

func withOrderID(req *http.Request, orderID uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCreateOrder(t *testing.T) {
	userID := uuid.New()
	shipping, billing := uuid.New(), uuid.New()
	var got internalorders.CreateOrderInput
	svc := &stubOrdersService{create: func(_ context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
		got = input
		return &models.Order{
			ID:          uuid.New(),
			OrderNumber: "ORD-20260401-000001",
			UserID:      input.UserID,
			Status:      enums.OrderStatusPending,
			FinalAmount: decimal.RequireFromString("279.00"),
		}, nil
	}}

	body := `{"shipping_address_id":"` + shipping.String() + `","billing_address_id":"` + billing.String() + `","payment_method":"upi","payment_reference":" pay_123 ","notes":"  "}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()
	Create(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, userID, got.UserID)
	require.Equal(t, shipping, got.ShippingAddressID)
	require.Equal(t, billing, got.BillingAddressID)
	require.Equal(t, enums.PaymentMethodUPI, got.PaymentMethod)
	require.NotNil(t, got.PaymentReference)
	require.Equal(t, "pay_123", *got.PaymentReference)
	require.Nil(t, got.Notes)

	var envelope struct {
		Data struct {
			OrderNumber string `json:"order_number"`
			Status      string `json:"order_status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "ORD-20260401-000001", envelope.Data.OrderNumber)
	require.Equal(t, "PENDING", envelope.Data.Status)
}

func TestCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	svc := &stubOrdersService{}
	body := `{"shipping_address_id":"` + uuid.NewString() + `","billing_address_id":"` + uuid.NewString() + `","payment_method":"BARTER"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	Create(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateOrderSurfacesDomainErrors(t *testing.T) {
	svc := &stubOrdersService{create: func(context.Context, internalorders.CreateOrderInput) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}}
	body := `{"shipping_address_id":"` + uuid.NewString() + `","billing_address_id":"` + uuid.NewString() + `","payment_method":"COD"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	Create(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Contains(t, resp.Body.String(), "EMPTY_CART")
}

func TestCancelOrderPassesActor(t *testing.T) {
	userID, orderID := uuid.New(), uuid.New()
	var got internalorders.CancelInput
	svc := &stubOrdersService{cancel: func(_ context.Context, input internalorders.CancelInput) (*models.Order, error) {
		got = input
		return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":" changed my mind "}`))
	req = withOrderID(asCustomer(req, userID), orderID)
	resp := httptest.NewRecorder()
	Cancel(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, orderID, got.OrderID)
	require.Equal(t, "changed my mind", got.Reason)
	require.Equal(t, userID, got.Actor.UserID)
	require.Equal(t, enums.ActorRoleCustomer, got.Actor.Role)
}

func TestDetailNotFound(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{get: func(context.Context, uuid.UUID, internalorders.Actor) (*models.Order, error) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}}

	req := withOrderID(asCustomer(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()), orderID)
	resp := httptest.NewRecorder()
	Detail(svc, logger.Nop())(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTimelineReturnsEmptyArray(t *testing.T) {
	svc := &stubOrdersService{timeline: func(context.Context, uuid.UUID, internalorders.Actor) ([]models.OrderTimeline, error) {
		return nil, nil
	}}

	req := withOrderID(asCustomer(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()), uuid.New())
	resp := httptest.NewRecorder()
	Timeline(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"data":[]}`, resp.Body.String())
}

func TestListPassesPagination(t *testing.T) {
	userID := uuid.New()
	var gotParams pagination.Params
	svc := &stubOrdersService{list: func(_ context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error) {
		require.Equal(t, userID, actor.UserID)
		gotParams = params
		return &internalorders.OrderList{Orders: []internalorders.OrderSummary{}}, nil
	}}

	req := asCustomer(httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", nil), userID)
	resp := httptest.NewRecorder()
	List(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, pagination.Params{Limit: 5, Cursor: "abc"}, gotParams)
}

func TestListRequiresAuthenticatedUser(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
