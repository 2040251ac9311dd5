package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// GetAllProducts возвращает складские позиции, упорядоченные по названию.
func (r *PostgresRepository) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, sku, cost_price, selling_price, stock, warehouse_id, low_stock_alert
		 FROM products
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var (
			p                  model.Product
			costCents, sellCts int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &costCents, &sellCts, &p.Stock, &p.WarehouseID, &p.LowStockAlert); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.CostPrice = fromMinor(costCents)
		p.SellingPrice = fromMinor(sellCts)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateProduct сохраняет новый товар.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, name, sku, cost_price, selling_price, stock, warehouse_id, low_stock_alert)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.SKU, toMinor(p.CostPrice), toMinor(p.SellingPrice), p.Stock, p.WarehouseID, p.LowStockAlert,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductExists, p.SKU)
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}

	created := *p
	return &created, nil
}

// DecrementStock уменьшает остаток товара. Возвращает false, если товар не найден.
func (r *PostgresRepository) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	var found bool
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1`,
			productID, quantity,
		)
		if err != nil {
			return err
		}
		found = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return found, nil
}
