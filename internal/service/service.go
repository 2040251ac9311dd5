// Package service реализует жизненный цикл заказа и синхронизацию со службами доставки.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/purnata-console/internal/courier"
	"github.com/mmeshcher/purnata-console/internal/customer"
	"github.com/mmeshcher/purnata-console/internal/locker"
	"github.com/mmeshcher/purnata-console/internal/model"
	"github.com/mmeshcher/purnata-console/internal/repository"
	"github.com/mmeshcher/purnata-console/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (*model.Order, error)
	UpdateCourierInfo(ctx context.Context, id string, upd model.CourierUpdate) (*model.Order, error)
	GetOrdersForTracking(ctx context.Context, limit int) ([]model.Order, error)
	MarkOrderSynced(ctx context.Context, id string, at time.Time) error
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetCourierConfigs(ctx context.Context) ([]model.CourierConfig, error)
	GetCourierConfig(ctx context.Context, t model.CourierType) (*model.CourierConfig, error)
	UpsertCourierConfig(ctx context.Context, cfg model.CourierConfig) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	TouchUser(ctx context.Context, id int64, at time.Time) error
}

// Inventory описывает списание остатков по позициям заказа.
type Inventory interface {
	Deduct(ctx context.Context, items []model.StockLine) error
}

// TrackResult описывает итог сверки заказа со службой доставки.
type TrackResult struct {
	Order          *model.Order
	ExternalStatus string
	Changed        bool
	// Skipped означает, что у заказа нет трек-номера или настроек курьера и запрос не выполнялся.
	Skipped bool
}

// Service единственный изменяет статус заказа.
type Service struct {
	repo     Repository
	ledger   Inventory
	gateways map[model.CourierType]courier.Gateway
	locker   locker.Locker
	policy   TransitionPolicy
	now      func() time.Time
	newID    func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithLocker задаёт блокировку заказов. По умолчанию используется блокировка внутри процесса.
func WithLocker(l locker.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPolicy задаёт политику переходов статусов. По умолчанию PermissivePolicy.
func WithPolicy(p TransitionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService создаёт сервис с хранилищем, складским журналом и шлюзами курьеров.
func NewService(repo Repository, ledger Inventory, gateways map[model.CourierType]courier.Gateway, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		ledger:   ledger,
		gateways: gateways,
		locker:   locker.NewMemory(),
		policy:   PermissivePolicy,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateOrder сохраняет новый заказ. Заказ, созданный сразу в статусе CONFIRMED, списывает остатки один раз.
// Если списание не удалось, возвращается сохранённый заказ вместе с ErrStockNotUpdated.
func (s *Service) CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	if err := validation.ValidateDraft(&draft); err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:             s.newID(),
		CustomerName:   draft.CustomerName,
		Phone:          draft.Phone,
		Address:        draft.Address,
		District:       draft.District,
		Thana:          draft.Thana,
		Items:          draft.Items,
		Total:          draft.Total,
		Status:         draft.Status,
		Source:         draft.Source,
		CODAmount:      draft.CODAmount,
		DeliveryCharge: draft.DeliveryCharge,
		AdvancePayment: draft.AdvancePayment,
		CreatedAt:      s.now().UTC(),
		Note:           draft.Note,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	if created.Status == model.OrderStatusConfirmed {
		if err := s.ledger.Deduct(ctx, created.StockLines()); err != nil {
			return created, fmt.Errorf("%w: order %s: %w", ErrStockNotUpdated, created.ID, err)
		}
	}

	return created, nil
}

// SetStatus меняет статус заказа. Остатки списываются только на переходе PENDING -> CONFIRMED,
// после успешной записи статуса.
func (s *Service) SetStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.policy(current, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, current.Status, status)
	if err != nil {
		return nil, err
	}

	if current.Status == model.OrderStatusPending && status == model.OrderStatusConfirmed {
		if err := s.ledger.Deduct(ctx, updated.StockLines()); err != nil {
			return updated, fmt.Errorf("%w: order %s: %w", ErrStockNotUpdated, id, err)
		}
	}

	return updated, nil
}

// BookCourier создаёт отправление у курьера и переводит заказ в SHIPPED вместе с курьерскими полями.
// Ошибка шлюза возвращается без изменений, заказ при этом не меняется.
func (s *Service) BookCourier(ctx context.Context, id string, courierType model.CourierType) (*model.Order, error) {
	cfg, gw, err := s.courierFor(ctx, courierType)
	if err != nil {
		if errors.Is(err, repository.ErrCourierConfigNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCourierNotConfigured, courierType)
		}
		return nil, err
	}
	if !cfg.Usable() || gw == nil {
		return nil, fmt.Errorf("%w: %s", ErrCourierNotConfigured, courierType)
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.HasCourierBinding() {
		return nil, fmt.Errorf("%w: tracking %s", ErrAlreadyBooked, order.TrackingID)
	}

	shipment, err := gw.CreateShipment(ctx, order, cfg.APIKey, cfg.StoreID)
	if err != nil {
		return nil, err
	}

	shipped := model.OrderStatusShipped
	return s.repo.UpdateCourierInfo(ctx, id, model.CourierUpdate{
		CourierID:   &shipment.CourierID,
		TrackingID:  &shipment.TrackingID,
		CourierType: &courierType,
		Status:      &shipped,
	})
}

// TrackCourier сверяет статус заказа с данными курьера.
// Без трек-номера, настроек курьера или ключа API вызов ничего не делает.
func (s *Service) TrackCourier(ctx context.Context, id string) (*TrackResult, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.TrackingID == "" {
		return &TrackResult{Order: order, Skipped: true}, nil
	}

	courierType := model.CourierSteadfast
	if order.CourierType != nil {
		courierType = *order.CourierType
	}

	cfg, gw, err := s.courierFor(ctx, courierType)
	if err != nil {
		if errors.Is(err, repository.ErrCourierConfigNotFound) {
			return &TrackResult{Order: order, Skipped: true}, nil
		}
		return nil, err
	}
	if gw == nil || cfg.APIKey == "" {
		return &TrackResult{Order: order, Skipped: true}, nil
	}

	external, err := gw.QueryStatus(ctx, order.TrackingID, cfg.APIKey, cfg.StoreID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTrackingFailed, err)
	}

	next, ok := courier.ToOrderStatus(external)
	if !ok || next == order.Status {
		return &TrackResult{Order: order, ExternalStatus: external}, nil
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, order.Status, next)
	if err != nil {
		return nil, err
	}

	return &TrackResult{Order: updated, ExternalStatus: external, Changed: true}, nil
}

// SyncShipments сверяет со службами доставки заказы, находящиеся в пути.
// Каждая попытка сверки отмечается в хранилище, поэтому следующий запуск начинает с других заказов.
// Возвращает число изменённых заказов и объединённые ошибки отдельных сверок.
func (s *Service) SyncShipments(ctx context.Context, limit int) (int, error) {
	orders, err := s.repo.GetOrdersForTracking(ctx, limit)
	if err != nil {
		return 0, err
	}

	var (
		changed int
		errs    []error
	)
	for _, o := range orders {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res, err := s.TrackCourier(ctx, o.ID)
		if markErr := s.repo.MarkOrderSynced(ctx, o.ID, s.now().UTC()); markErr != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", o.ID, markErr))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", o.ID, err))
			continue
		}
		if res.Changed {
			changed++
		}
	}

	return changed, errors.Join(errs...)
}

// TestCourierConnection проверяет учётные данные курьера, не затрагивая заказы.
func (s *Service) TestCourierConnection(ctx context.Context, cfg model.CourierConfig) (bool, error) {
	gw, ok := s.gateways[cfg.Type]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrCourierNotConfigured, cfg.Type)
	}
	return gw.VerifyCredentials(ctx, cfg.APIKey, cfg.StoreID)
}

func (s *Service) courierFor(ctx context.Context, t model.CourierType) (*model.CourierConfig, courier.Gateway, error) {
	cfg, err := s.repo.GetCourierConfig(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s.gateways[t], nil
}

// ListOrders возвращает все заказы, начиная с новых.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.GetAllOrders(ctx)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

// ListCustomers собирает покупателей из текущего набора заказов.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	orders, err := s.repo.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	return customer.Aggregate(orders), nil
}
