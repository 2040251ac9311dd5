// Package handler содержит HTTP-обработчики API консоли Purnata.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/purnata-console/internal/access"
	"github.com/mmeshcher/purnata-console/internal/courier"
	"github.com/mmeshcher/purnata-console/internal/middleware"
	"github.com/mmeshcher/purnata-console/internal/model"
	"github.com/mmeshcher/purnata-console/internal/repository"
	"github.com/mmeshcher/purnata-console/internal/service"
	"github.com/mmeshcher/purnata-console/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	AuthenticateUser(ctx context.Context, email string) (*model.User, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, error)
	SetStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
	BookCourier(ctx context.Context, id string, courierType model.CourierType) (*model.Order, error)
	TrackCourier(ctx context.Context, id string) (*service.TrackResult, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	LowStockProducts(ctx context.Context) ([]model.Product, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	ListCourierConfigs(ctx context.Context) ([]model.CourierConfig, error)
	UpdateCourierConfig(ctx context.Context, cfg model.CourierConfig) error
	TestCourierConnection(ctx context.Context, cfg model.CourierConfig) (bool, error)
}

// Handler реализует HTTP-обработчики API консоли.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// notification содержит одно короткое сообщение об исходе операции и, при необходимости, заказ.
type notification struct {
	Message string       `json:"message"`
	Order   *model.Order `json:"order,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notify(w http.ResponseWriter, status int, message string, order *model.Order) {
	writeJSON(w, status, notification{Message: message, Order: order})
}

// fail переводит ошибку сервиса в HTTP-ответ. Непредвиденные ошибки логируются и
// отдаются клиенту с сообщением fallback.
func (h *Handler) fail(w http.ResponseWriter, op string, err error, fallback string, fields ...zap.Field) {
	var integrationErr *courier.IntegrationError

	switch {
	case errors.Is(err, validation.ErrInvalidDraft), errors.Is(err, service.ErrInvalidProduct):
		notify(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, repository.ErrOrderNotFound):
		notify(w, http.StatusNotFound, "Order not found", nil)
	case errors.Is(err, repository.ErrProductExists):
		notify(w, http.StatusConflict, "Product with this SKU already exists", nil)
	case errors.Is(err, repository.ErrStatusConflict), errors.Is(err, service.ErrAlreadyBooked):
		notify(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidTransition):
		notify(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, service.ErrCourierNotConfigured):
		notify(w, http.StatusPreconditionFailed, "Courier API key required. Check settings.", nil)
	case errors.Is(err, service.ErrTrackingFailed):
		h.logger.Warn(op, append(fields, zap.Error(err))...)
		notify(w, http.StatusBadGateway, "Tracking failed", nil)
	case errors.As(err, &integrationErr):
		notify(w, http.StatusBadGateway, integrationErr.Message, nil)
	default:
		h.logger.Error(op, append(fields, zap.Error(err))...)
		notify(w, http.StatusInternalServerError, fallback, nil)
	}
}

type sessionRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	ID   int64          `json:"id"`
	Name string         `json:"name"`
	Role model.UserRole `json:"role"`
}

// Login находит сотрудника по e-mail и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, access.Session{UserID: user.ID, Role: user.Role})
	writeJSON(w, http.StatusOK, sessionResponse{ID: user.ID, Name: user.Name, Role: user.Role})
}

// GetOrders возвращает все заказы, начиная с новых.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.fail(w, "list orders error", err, "Failed to load orders")
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get order error", err, "Failed to load order", zap.String("order", id))
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// CreateOrder сохраняет новый заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var draft model.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), draft)
	if errors.Is(err, service.ErrStockNotUpdated) && order != nil {
		h.logger.Error("create order stock error", zap.Error(err), zap.String("order", order.ID))
		w.Header().Set("Location", "/api/orders/"+order.ID)
		notify(w, http.StatusCreated, "Order saved, but stock update failed", order)
		return
	}
	if err != nil {
		h.fail(w, "create order error", err, "Failed to save order")
		return
	}

	w.Header().Set("Location", "/api/orders/"+order.ID)
	notify(w, http.StatusCreated, "Order saved successfully", order)
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateStatus меняет статус заказа.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.SetStatus(r.Context(), id, req.Status)
	if errors.Is(err, service.ErrStockNotUpdated) && order != nil {
		h.logger.Error("update status stock error", zap.Error(err), zap.String("order", id))
		notify(w, http.StatusOK, fmt.Sprintf("Order status updated to %s, but stock update failed", order.Status), order)
		return
	}
	if err != nil {
		h.fail(w, "update status error", err, "Failed to update status",
			zap.String("order", id), zap.String("status", string(req.Status)))
		return
	}

	notify(w, http.StatusOK, fmt.Sprintf("Order status updated to %s", order.Status), order)
}

type courierRequest struct {
	CourierType model.CourierType `json:"courierType"`
}

// BookCourier бронирует доставку заказа у курьера.
func (h *Handler) BookCourier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// пустое тело означает Steadfast
	req := courierRequest{CourierType: model.CourierSteadfast}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !req.CourierType.Valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.BookCourier(r.Context(), id, req.CourierType)
	if err != nil {
		h.fail(w, "book courier error", err, "Courier connection failed",
			zap.String("order", id), zap.String("courier", string(req.CourierType)))
		return
	}

	notify(w, http.StatusOK, "Courier booking successful!", order)
}

// TrackCourier сверяет статус заказа с курьером.
func (h *Handler) TrackCourier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.TrackCourier(r.Context(), id)
	if err != nil {
		h.fail(w, "track courier error", err, "Tracking failed", zap.String("order", id))
		return
	}

	switch {
	case res.Skipped:
		notify(w, http.StatusOK, "Nothing to track", res.Order)
	case res.Changed:
		notify(w, http.StatusOK, fmt.Sprintf("Status updated to %s", res.Order.Status), res.Order)
	default:
		notify(w, http.StatusOK, fmt.Sprintf("Current status: %s", res.ExternalStatus), res.Order)
	}
}

// GetProducts возвращает складские позиции.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.fail(w, "list products error", err, "Failed to load products")
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// CreateProduct добавляет товар.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateProduct(r.Context(), p)
	if err != nil {
		h.fail(w, "create product error", err, "Failed to add product", zap.String("sku", p.SKU))
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetLowStock возвращает товары с остатком на пороге оповещения или ниже.
func (h *Handler) GetLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStockProducts(r.Context())
	if err != nil {
		h.fail(w, "low stock error", err, "Failed to load products")
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetCustomers возвращает покупателей, собранных из заказов.
func (h *Handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, "list customers error", err, "Failed to load customers")
		return
	}

	writeJSON(w, http.StatusOK, customers)
}

// GetCourierConfigs возвращает настройки служб доставки.
func (h *Handler) GetCourierConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.ListCourierConfigs(r.Context())
	if err != nil {
		h.fail(w, "list courier configs error", err, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, configs)
}

type courierConfigRequest struct {
	APIKey   string `json:"apiKey"`
	StoreID  string `json:"storeId"`
	IsActive bool   `json:"isActive"`
}

func courierTypeParam(r *http.Request) (model.CourierType, bool) {
	t := model.CourierType(strings.ToUpper(chi.URLParam(r, "type")))
	return t, t.Valid()
}

// UpdateCourierConfig сохраняет настройки службы доставки.
func (h *Handler) UpdateCourierConfig(w http.ResponseWriter, r *http.Request) {
	courierType, ok := courierTypeParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req courierConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cfg := model.CourierConfig{Type: courierType, APIKey: req.APIKey, StoreID: req.StoreID, IsActive: req.IsActive}
	if err := h.service.UpdateCourierConfig(r.Context(), cfg); err != nil {
		h.fail(w, "update courier config error", err, "Failed to update settings",
			zap.String("courier", string(courierType)))
		return
	}

	notify(w, http.StatusOK, "Settings updated", nil)
}

// TestCourierConnection проверяет переданные ключи курьера, ничего не сохраняя.
func (h *Handler) TestCourierConnection(w http.ResponseWriter, r *http.Request) {
	courierType, ok := courierTypeParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req courierConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cfg := model.CourierConfig{Type: courierType, APIKey: req.APIKey, StoreID: req.StoreID, IsActive: true}
	verified, err := h.service.TestCourierConnection(r.Context(), cfg)
	if err != nil {
		h.fail(w, "test courier connection error", err, "Test failed", zap.String("courier", string(courierType)))
		return
	}

	if !verified {
		notify(w, http.StatusUnprocessableEntity, "API connection failed. Check keys.", nil)
		return
	}
	notify(w, http.StatusOK, "API connection successful!", nil)
}
