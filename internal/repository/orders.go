package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/purnata-console/internal/model"
)

const orderColumns = `id, customer_name, phone, address, district, thana, total, status, source,
	courier_type, courier_id, tracking_id, cod_amount, delivery_charge, advance_payment, note, created_at`

// CreateOrder сохраняет заказ вместе с позициями в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, customer_name, phone, address, district, thana, total, status, source,
			cod_amount, delivery_charge, advance_payment, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.CustomerName, o.Phone, o.Address, o.District, o.Thana, toMinor(o.Total),
		string(o.Status), string(o.Source), toMinor(o.CODAmount), toMinor(o.DeliveryCharge),
		toMinor(o.AdvancePayment), o.Note, o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, it.ProductID, it.Quantity, toMinor(it.Price),
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return r.GetOrderByID(ctx, o.ID)
}

// GetAllOrders возвращает все заказы, начиная с новых.
func (r *PostgresRepository) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	return r.collectOrders(ctx, rows)
}

// GetOrdersForTracking возвращает отправленные заказы с трек-номером.
// Первыми идут ни разу не сверенные, затем сверенные давнее всего.
func (r *PostgresRepository) GetOrdersForTracking(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1 AND tracking_id IS NOT NULL AND tracking_id <> ''
		 ORDER BY last_synced_at NULLS FIRST, created_at
		 LIMIT $2`,
		string(model.OrderStatusShipped), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for tracking: %w", err)
	}

	return r.collectOrders(ctx, rows)
}

// MarkOrderSynced запоминает время последней сверки заказа с курьером.
func (r *PostgresRepository) MarkOrderSynced(ctx context.Context, id string, at time.Time) error {
	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `UPDATE orders SET last_synced_at = $2 WHERE id = $1`, id, at)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark order synced: %w", err)
	}
	return nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]

	return o, nil
}

// UpdateOrderStatus записывает новый статус, только если текущий статус равен from.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (*model.Order, error) {
	var affected int64
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
			id, string(from), string(to),
		)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if affected == 0 {
		if _, err := r.GetOrderByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: expected %s", ErrStatusConflict, from)
	}

	return r.GetOrderByID(ctx, id)
}

// UpdateCourierInfo обновляет переданные курьерские поля и статус одним запросом.
func (r *PostgresRepository) UpdateCourierInfo(ctx context.Context, id string, upd model.CourierUpdate) (*model.Order, error) {
	args := []any{id}
	sets := make([]string, 0, 4)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.CourierID != nil {
		add("courier_id", *upd.CourierID)
	}
	if upd.TrackingID != nil {
		add("tracking_id", *upd.TrackingID)
	}
	if upd.CourierType != nil {
		add("courier_type", string(*upd.CourierType))
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}

	if len(sets) == 0 {
		return r.GetOrderByID(ctx, id)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update courier info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}

	return r.GetOrderByID(ctx, id)
}

func (r *PostgresRepository) collectOrders(ctx context.Context, rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, quantity, price
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[string][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			item    model.OrderItem
			price   int64
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Price = fromMinor(price)
		res[orderID] = append(res[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                                   model.Order
		status, source                      string
		courierType, courierID, trackingID  *string
		total, cod, deliveryCharge, advance int64
		createdAt                           time.Time
	)

	err := row.Scan(&o.ID, &o.CustomerName, &o.Phone, &o.Address, &o.District, &o.Thana, &total,
		&status, &source, &courierType, &courierID, &trackingID, &cod, &deliveryCharge, &advance,
		&o.Note, &createdAt)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	o.Source = model.OrderSource(source)
	o.Total = fromMinor(total)
	o.CODAmount = fromMinor(cod)
	o.DeliveryCharge = fromMinor(deliveryCharge)
	o.AdvancePayment = fromMinor(advance)
	o.CreatedAt = createdAt

	if courierType != nil {
		ct := model.CourierType(*courierType)
		o.CourierType = &ct
	}
	if courierID != nil {
		o.CourierID = *courierID
	}
	if trackingID != nil {
		o.TrackingID = *trackingID
	}

	return &o, nil
}
