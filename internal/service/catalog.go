package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// ErrInvalidProduct возвращается, если данные товара некорректны.
var ErrInvalidProduct = errors.New("invalid product")

// ListProducts возвращает складские позиции.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.GetAllProducts(ctx)
}

// CreateProduct добавляет товар на склад.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.SKU) == "" {
		return nil, ErrInvalidProduct
	}
	if p.Stock < 0 || p.LowStockAlert < 0 || p.CostPrice.IsNegative() || p.SellingPrice.IsNegative() {
		return nil, ErrInvalidProduct
	}

	p.ID = s.newID()
	return s.repo.CreateProduct(ctx, &p)
}

// LowStockProducts возвращает товары, остаток которых достиг порога оповещения.
func (s *Service) LowStockProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.repo.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.Product, 0)
	for _, p := range products {
		if p.LowOnStock() {
			res = append(res, p)
		}
	}
	return res, nil
}

// ListCourierConfigs возвращает настройки всех служб доставки.
func (s *Service) ListCourierConfigs(ctx context.Context) ([]model.CourierConfig, error) {
	return s.repo.GetCourierConfigs(ctx)
}

// UpdateCourierConfig сохраняет настройки службы доставки.
func (s *Service) UpdateCourierConfig(ctx context.Context, cfg model.CourierConfig) error {
	if !cfg.Type.Valid() {
		return ErrCourierNotConfigured
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.StoreID = strings.TrimSpace(cfg.StoreID)
	return s.repo.UpsertCourierConfig(ctx, cfg)
}

// AuthenticateUser находит сотрудника по e-mail и отмечает время его активности.
func (s *Service) AuthenticateUser(ctx context.Context, email string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.TouchUser(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastActive = now

	return u, nil
}
