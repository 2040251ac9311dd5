// Package inventory реализует складской учёт: списание остатков по позициям заказа.
package inventory

import (
	"context"
	"fmt"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// Store описывает хранилище остатков, в котором ведётся списание.
// DecrementStock возвращает false, если товар не найден.
type Store interface {
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
}

// Ledger единственный изменяет остатки товаров.
type Ledger struct {
	store Store
}

// NewLedger создаёт журнал списаний поверх хранилища товаров.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Deduct уменьшает остаток каждого товара на указанное количество.
// Неизвестные товары пропускаются; защиты от отрицательного остатка нет.
func (l *Ledger) Deduct(ctx context.Context, items []model.StockLine) error {
	for _, it := range items {
		if _, err := l.store.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("deduct %s: %w", it.ProductID, err)
		}
	}
	return nil
}
