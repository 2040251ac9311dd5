package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/purnata-console/internal/access"
	"github.com/mmeshcher/purnata-console/internal/courier"
	"github.com/mmeshcher/purnata-console/internal/middleware"
	"github.com/mmeshcher/purnata-console/internal/model"
	"github.com/mmeshcher/purnata-console/internal/repository"
	"github.com/mmeshcher/purnata-console/internal/service"
	"github.com/mmeshcher/purnata-console/internal/validation"
)

type stubService struct {
	user    *model.User
	authErr error

	orders    []model.Order
	draft     model.OrderDraft
	order     *model.Order
	orderErr  error
	statusArg model.OrderStatus

	bookType model.CourierType
	bookErr  error

	track    *service.TrackResult
	trackErr error

	products   []model.Product
	productErr error

	customers []model.Customer

	configs   []model.CourierConfig
	savedCfg  *model.CourierConfig
	verified  bool
	verifyErr error
}

func (s *stubService) AuthenticateUser(ctx context.Context, email string) (*model.User, error) {
	return s.user, s.authErr
}

func (s *stubService) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.orders, s.orderErr
}

func (s *stubService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	s.draft = draft
	return s.order, s.orderErr
}

func (s *stubService) SetStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	s.statusArg = status
	if s.orderErr != nil && !errors.Is(s.orderErr, service.ErrStockNotUpdated) {
		return nil, s.orderErr
	}
	o := *s.order
	o.Status = status
	return &o, s.orderErr
}

func (s *stubService) BookCourier(ctx context.Context, id string, courierType model.CourierType) (*model.Order, error) {
	s.bookType = courierType
	return s.order, s.bookErr
}

func (s *stubService) TrackCourier(ctx context.Context, id string) (*service.TrackResult, error) {
	return s.track, s.trackErr
}

func (s *stubService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.products, s.productErr
}

func (s *stubService) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if s.productErr != nil {
		return nil, s.productErr
	}
	p.ID = "P1"
	return &p, nil
}

func (s *stubService) LowStockProducts(ctx context.Context) ([]model.Product, error) {
	return s.products, s.productErr
}

func (s *stubService) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.customers, nil
}

func (s *stubService) ListCourierConfigs(ctx context.Context) ([]model.CourierConfig, error) {
	return s.configs, nil
}

func (s *stubService) UpdateCourierConfig(ctx context.Context, cfg model.CourierConfig) error {
	s.savedCfg = &cfg
	return nil
}

func (s *stubService) TestCourierConnection(ctx context.Context, cfg model.CourierConfig) (bool, error) {
	return s.verified, s.verifyErr
}

type testServer struct {
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T, svc Service) *testServer {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	h := NewHandler(svc, logger, middleware.NewAuthMiddleware("test-secret"))
	return &testServer{h: h, router: h.SetupRouter()}
}

func (ts *testServer) do(t *testing.T, role model.UserRole, method, target string, body any) *http.Response {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req := httptest.NewRequest(method, target, &payload)
	if role != "" {
		rec := httptest.NewRecorder()
		ts.h.authMiddleware.SetAuthCookie(rec, access.Session{UserID: 1, Role: role})
		req.AddCookie(rec.Result().Cookies()[0])
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec.Result()
}

func decodeNotification(t *testing.T, res *http.Response) notification {
	t.Helper()
	defer res.Body.Close()

	var n notification
	require.NoError(t, json.NewDecoder(res.Body).Decode(&n))
	return n
}

func sampleOrder() *model.Order {
	return &model.Order{
		ID:           "O1",
		CustomerName: "Rahim",
		Phone:        "01711223344",
		Status:       model.OrderStatusPending,
		Source:       model.OrderSourceManual,
		Total:        decimal.NewFromInt(260),
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	svc := &stubService{user: &model.User{ID: 3, Name: "Nadia", Email: "nadia@purnata.test", Role: model.RoleManager}}
	ts := newTestServer(t, svc)

	res := ts.do(t, "", http.MethodPost, "/api/session", sessionRequest{Email: "nadia@purnata.test"})
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Cookies())

	var body sessionResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, model.RoleManager, body.Role)
}

func TestLogin_UnknownUser(t *testing.T) {
	ts := newTestServer(t, &stubService{authErr: repository.ErrUserNotFound})

	res := ts.do(t, "", http.MethodPost, "/api/session", sessionRequest{Email: "ghost@purnata.test"})
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRoutes_Authorization(t *testing.T) {
	tests := []struct {
		name   string
		role   model.UserRole
		method string
		target string
		want   int
	}{
		{name: "anonymous", method: http.MethodGet, target: "/api/orders", want: http.StatusUnauthorized},
		{name: "staff lists orders", role: model.RoleStaff, method: http.MethodGet, target: "/api/orders", want: http.StatusOK},
		{name: "accounts cannot list orders", role: model.RoleAccounts, method: http.MethodGet, target: "/api/orders", want: http.StatusForbidden},
		{name: "viewer sees low stock", role: model.RoleViewer, method: http.MethodGet, target: "/api/products/low-stock", want: http.StatusOK},
		{name: "staff cannot see inventory", role: model.RoleStaff, method: http.MethodGet, target: "/api/products", want: http.StatusForbidden},
		{name: "manager cannot open settings", role: model.RoleManager, method: http.MethodGet, target: "/api/couriers", want: http.StatusForbidden},
		{name: "owner opens settings", role: model.RoleOwner, method: http.MethodGet, target: "/api/couriers", want: http.StatusOK},
		{name: "staff sees customers", role: model.RoleStaff, method: http.MethodGet, target: "/api/customers", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubService{})

			res := ts.do(t, tt.role, tt.method, tt.target, nil)
			res.Body.Close()

			assert.Equal(t, tt.want, res.StatusCode)
		})
	}
}

func TestCreateOrder(t *testing.T) {
	ts := newTestServer(t, &stubService{order: sampleOrder()})

	res := ts.do(t, model.RoleStaff, http.MethodPost, "/api/orders", model.OrderDraft{CustomerName: "Rahim"})
	assert.Equal(t, "/api/orders/O1", res.Header.Get("Location"))
	require.Equal(t, http.StatusCreated, res.StatusCode)

	n := decodeNotification(t, res)
	assert.Equal(t, "Order saved successfully", n.Message)
	require.NotNil(t, n.Order)
	assert.Equal(t, "O1", n.Order.ID)
}

func TestCreateOrder_StockNotUpdated(t *testing.T) {
	err := fmt.Errorf("%w: order O1: %w", service.ErrStockNotUpdated, errors.New("connection reset"))
	ts := newTestServer(t, &stubService{order: sampleOrder(), orderErr: err})

	res := ts.do(t, model.RoleStaff, http.MethodPost, "/api/orders",
		model.OrderDraft{CustomerName: "Rahim", Status: model.OrderStatusConfirmed})
	assert.Equal(t, "/api/orders/O1", res.Header.Get("Location"))
	require.Equal(t, http.StatusCreated, res.StatusCode)

	n := decodeNotification(t, res)
	assert.Equal(t, "Order saved, but stock update failed", n.Message)
	require.NotNil(t, n.Order)
	assert.Equal(t, "O1", n.Order.ID)
}

func TestCreateOrder_InvalidDraft(t *testing.T) {
	err := fmt.Errorf("%w: phone %q is not a valid mobile number", validation.ErrInvalidDraft, "123")
	ts := newTestServer(t, &stubService{orderErr: err})

	res := ts.do(t, model.RoleStaff, http.MethodPost, "/api/orders", model.OrderDraft{})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	n := decodeNotification(t, res)
	assert.Contains(t, n.Message, "not a valid mobile number")
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "ok", wantStatus: http.StatusOK, wantMsg: "Order status updated to CONFIRMED"},
		{name: "not found", err: repository.ErrOrderNotFound, wantStatus: http.StatusNotFound, wantMsg: "Order not found"},
		{name: "rejected transition", err: service.ErrInvalidTransition, wantStatus: http.StatusUnprocessableEntity},
		{name: "concurrent change", err: repository.ErrStatusConflict, wantStatus: http.StatusConflict},
		{name: "store failure", err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError, wantMsg: "Failed to update status"},
		{
			name:       "stock not updated",
			err:        fmt.Errorf("%w: order O1: %w", service.ErrStockNotUpdated, errors.New("connection reset")),
			wantStatus: http.StatusOK,
			wantMsg:    "Order status updated to CONFIRMED, but stock update failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{order: sampleOrder(), orderErr: tt.err}
			ts := newTestServer(t, svc)

			res := ts.do(t, model.RoleManager, http.MethodPatch, "/api/orders/O1/status",
				statusRequest{Status: model.OrderStatusConfirmed})
			require.Equal(t, tt.wantStatus, res.StatusCode)

			n := decodeNotification(t, res)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, n.Message)
			}
			assert.Equal(t, model.OrderStatusConfirmed, svc.statusArg)
		})
	}
}

func TestBookCourier(t *testing.T) {
	booked := sampleOrder()
	booked.Status = model.OrderStatusShipped
	booked.TrackingID = "15BAEB8A"

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "booked", wantStatus: http.StatusOK, wantMsg: "Courier booking successful!"},
		{
			name:       "not configured",
			err:        fmt.Errorf("%w: STEADFAST", service.ErrCourierNotConfigured),
			wantStatus: http.StatusPreconditionFailed,
			wantMsg:    "Courier API key required. Check settings.",
		},
		{
			name:       "courier message surfaces unchanged",
			err:        &courier.IntegrationError{Message: "The recipient phone must be 11 digits."},
			wantStatus: http.StatusBadGateway,
			wantMsg:    "The recipient phone must be 11 digits.",
		},
		{name: "already booked", err: service.ErrAlreadyBooked, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{order: booked, bookErr: tt.err}
			ts := newTestServer(t, svc)

			res := ts.do(t, model.RoleStaff, http.MethodPost, "/api/orders/O1/courier", nil)
			require.Equal(t, tt.wantStatus, res.StatusCode)

			n := decodeNotification(t, res)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, n.Message)
			}
			assert.Equal(t, model.CourierSteadfast, svc.bookType)
		})
	}
}

func TestBookCourier_EmptyChunkedBody(t *testing.T) {
	svc := &stubService{order: sampleOrder()}
	ts := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/O1/courier", io.NopCloser(strings.NewReader("")))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	ts.authorize(t, req, model.RoleStaff)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.CourierSteadfast, svc.bookType)
}

func TestBookCourier_UnknownCourierType(t *testing.T) {
	ts := newTestServer(t, &stubService{order: sampleOrder()})

	res := ts.do(t, model.RoleStaff, http.MethodPost, "/api/orders/O1/courier", courierRequest{CourierType: "DHL"})
	res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestTrackCourier(t *testing.T) {
	delivered := sampleOrder()
	delivered.Status = model.OrderStatusDelivered

	tests := []struct {
		name       string
		track      *service.TrackResult
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "status changed",
			track:      &service.TrackResult{Order: delivered, ExternalStatus: "DELIVERED", Changed: true},
			wantStatus: http.StatusOK,
			wantMsg:    "Status updated to DELIVERED",
		},
		{
			name:       "status unchanged",
			track:      &service.TrackResult{Order: sampleOrder(), ExternalStatus: "IN_REVIEW"},
			wantStatus: http.StatusOK,
			wantMsg:    "Current status: IN_REVIEW",
		},
		{
			name:       "nothing to track",
			track:      &service.TrackResult{Order: sampleOrder(), Skipped: true},
			wantStatus: http.StatusOK,
			wantMsg:    "Nothing to track",
		},
		{
			name: "courier rejection stays generic",
			err: fmt.Errorf("%w: %w", service.ErrTrackingFailed,
				&courier.IntegrationError{Message: "Invalid tracking code"}),
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Tracking failed",
		},
		{
			name:       "courier unreachable",
			err:        fmt.Errorf("%w: %w", service.ErrTrackingFailed, errors.New("i/o timeout")),
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Tracking failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubService{track: tt.track, trackErr: tt.err})

			res := ts.do(t, model.RoleManager, http.MethodPost, "/api/orders/O1/tracking", nil)
			require.Equal(t, tt.wantStatus, res.StatusCode)

			n := decodeNotification(t, res)
			assert.Equal(t, tt.wantMsg, n.Message)
		})
	}
}

func TestCreateProduct(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	res := ts.do(t, model.RoleManager, http.MethodPost, "/api/products",
		model.Product{Name: "Saree", SKU: "SAR-1", Stock: 5})
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var p model.Product
	require.NoError(t, json.NewDecoder(res.Body).Decode(&p))
	assert.Equal(t, "P1", p.ID)
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	ts := newTestServer(t, &stubService{productErr: repository.ErrProductExists})

	res := ts.do(t, model.RoleOwner, http.MethodPost, "/api/products", model.Product{Name: "Saree", SKU: "SAR-1"})
	res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestUpdateCourierConfig(t *testing.T) {
	svc := &stubService{}
	ts := newTestServer(t, svc)

	res := ts.do(t, model.RoleOwner, http.MethodPut, "/api/couriers/steadfast",
		courierConfigRequest{APIKey: "key", StoreID: "secret", IsActive: true})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Settings updated", decodeNotification(t, res).Message)

	require.NotNil(t, svc.savedCfg)
	assert.Equal(t, model.CourierSteadfast, svc.savedCfg.Type)
	assert.Equal(t, "key", svc.savedCfg.APIKey)
	assert.True(t, svc.savedCfg.IsActive)

	res = ts.do(t, model.RoleOwner, http.MethodPut, "/api/couriers/fedex", courierConfigRequest{})
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestTestCourierConnection(t *testing.T) {
	tests := []struct {
		name       string
		verified   bool
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "valid keys", verified: true, wantStatus: http.StatusOK, wantMsg: "API connection successful!"},
		{name: "rejected keys", wantStatus: http.StatusUnprocessableEntity, wantMsg: "API connection failed. Check keys."},
		{
			name:       "courier down",
			err:        &courier.IntegrationError{Message: "Steadfast connection failed"},
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Steadfast connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubService{verified: tt.verified, verifyErr: tt.err})

			res := ts.do(t, model.RoleOwner, http.MethodPost, "/api/couriers/STEADFAST/test",
				courierConfigRequest{APIKey: "key", StoreID: "secret"})
			require.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, tt.wantMsg, decodeNotification(t, res).Message)
		})
	}
}
