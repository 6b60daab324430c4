package returns

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	internalorders "github.com/angelmondragon/fulfillment-backend/internal/orders"
	internalreturns "github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// stubReturnsService embeds the interface so tests only implement what they call.
type stubReturnsService struct {
	internalreturns.Service
	create     func(ctx context.Context, input internalreturns.CreateReturnInput) (*models.ReturnRequest, error)
	get        func(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*models.ReturnRequest, error)
	getByOrder func(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*models.ReturnRequest, error)
}

func (s *stubReturnsService) Create(ctx context.Context, input internalreturns.CreateReturnInput) (*models.ReturnRequest, error) {
	return s.create(ctx, input)
}

func (s *stubReturnsService) Get(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*models.ReturnRequest, error) {
	return s.get(ctx, id, actor)
}

func (s *stubReturnsService) GetByOrder(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*models.ReturnRequest, error) {
	return s.getByOrder(ctx, id, actor)
}

func returnForm(t *testing.T, images int, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("reason", " Wrong size "))
	require.NoError(t, mw.WriteField("description", "Collar is much tighter than the size chart says"))
	for i := 0; i < images; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="IMG_%d.JPG"`, i))
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{'x'}, size))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func customerRequest(method, target string, body io.Reader, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithRole(middleware.WithUserID(req.Context(), userID.String()), string(enums.ActorRoleCustomer))
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rc))
}

func TestCreateReturnReadsMultipartForm(t *testing.T) {
	userID, orderID := uuid.New(), uuid.New()
	var got internalreturns.CreateReturnInput
	var contents [][]byte
	svc := &stubReturnsService{create: func(_ context.Context, input internalreturns.CreateReturnInput) (*models.ReturnRequest, error) {
		got = input
		for _, img := range input.Images {
			data, err := io.ReadAll(img.Content)
			if err != nil {
				return nil, err
			}
			contents = append(contents, data)
		}
		return &models.ReturnRequest{
			ID:           uuid.New(),
			OrderID:      input.OrderID,
			UserID:       input.UserID,
			Status:       enums.ReturnStatusPending,
			RefundAmount: decimal.RequireFromString("180.00"),
		}, nil
	}}

	body, contentType := returnForm(t, 2, 64)
	req := customerRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/returns", body, userID, map[string]string{"orderId": orderID.String()})
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	Create(svc, 1024, logger.Nop())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, userID, got.UserID)
	require.Equal(t, orderID, got.OrderID)
	require.Equal(t, "Wrong size", got.Reason)
	require.Len(t, got.Images, 2)
	require.Equal(t, "image/jpeg", got.Images[0].ContentType)
	require.Equal(t, int64(64), got.Images[0].Size)
	require.Len(t, contents[1], 64)
}

func TestCreateReturnRejectsOversizedImage(t *testing.T) {
	svc := &stubReturnsService{}
	orderID := uuid.New()
	body, contentType := returnForm(t, 1, 2048)
	req := customerRequest(http.MethodPost, "/", body, uuid.New(), map[string]string{"orderId": orderID.String()})
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	Create(svc, 1024, logger.Nop())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateReturnRejectsTooManyImages(t *testing.T) {
	svc := &stubReturnsService{}
	orderID := uuid.New()
	body, contentType := returnForm(t, internalreturns.MaxEvidenceImages+1, 8)
	req := customerRequest(http.MethodPost, "/", body, uuid.New(), map[string]string{"orderId": orderID.String()})
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	Create(svc, 1024, logger.Nop())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateReturnSurfacesWindowExpiry(t *testing.T) {
	svc := &stubReturnsService{create: func(context.Context, internalreturns.CreateReturnInput) (*models.ReturnRequest, error) {
		return nil, pkgerrors.New(pkgerrors.CodeReturnWindowExpired, "return window closed")
	}}
	orderID := uuid.New()
	body, contentType := returnForm(t, 0, 0)
	req := customerRequest(http.MethodPost, "/", body, uuid.New(), map[string]string{"orderId": orderID.String()})
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	Create(svc, 1024, logger.Nop())(resp, req)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Contains(t, resp.Body.String(), "RETURN_WINDOW_EXPIRED")
}

func TestDetailAndForOrder(t *testing.T) {
	userID, returnID, orderID := uuid.New(), uuid.New(), uuid.New()
	svc := &stubReturnsService{
		get: func(_ context.Context, id uuid.UUID, actor internalorders.Actor) (*models.ReturnRequest, error) {
			require.Equal(t, userID, actor.UserID)
			return &models.ReturnRequest{ID: id, Status: enums.ReturnStatusApproved}, nil
		},
		getByOrder: func(_ context.Context, id uuid.UUID, _ internalorders.Actor) (*models.ReturnRequest, error) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no return for order %s", id)
		},
	}

	resp := httptest.NewRecorder()
	Detail(svc, logger.Nop())(resp, customerRequest(http.MethodGet, "/", nil, userID, map[string]string{"returnId": returnID.String()}))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), returnID.String())

	resp = httptest.NewRecorder()
	ForOrder(svc, logger.Nop())(resp, customerRequest(http.MethodGet, "/", nil, userID, map[string]string{"orderId": orderID.String()}))
	require.Equal(t, http.StatusNotFound, resp.Code)
}
