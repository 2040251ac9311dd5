package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// GetCourierConfigs возвращает настройки всех служб доставки.
func (r *PostgresRepository) GetCourierConfigs(ctx context.Context) ([]model.CourierConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, api_key, store_id, is_active FROM courier_configs ORDER BY type`,
	)
	if err != nil {
		return nil, fmt.Errorf("select courier configs: %w", err)
	}
	defer rows.Close()

	var res []model.CourierConfig
	for rows.Next() {
		var (
			cfg model.CourierConfig
			t   string
		)
		if err := rows.Scan(&t, &cfg.APIKey, &cfg.StoreID, &cfg.IsActive); err != nil {
			return nil, fmt.Errorf("scan courier config: %w", err)
		}
		cfg.Type = model.CourierType(t)
		res = append(res, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetCourierConfig возвращает настройки службы доставки указанного типа.
func (r *PostgresRepository) GetCourierConfig(ctx context.Context, t model.CourierType) (*model.CourierConfig, error) {
	cfg := model.CourierConfig{Type: t}
	err := r.pool.QueryRow(ctx,
		`SELECT api_key, store_id, is_active FROM courier_configs WHERE type = $1`,
		string(t),
	).Scan(&cfg.APIKey, &cfg.StoreID, &cfg.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourierConfigNotFound
		}
		return nil, fmt.Errorf("get courier config: %w", err)
	}
	return &cfg, nil
}

// UpsertCourierConfig создаёт или заменяет настройки службы доставки.
func (r *PostgresRepository) UpsertCourierConfig(ctx context.Context, cfg model.CourierConfig) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO courier_configs (type, api_key, store_id, is_active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (type) DO UPDATE
		 SET api_key = EXCLUDED.api_key, store_id = EXCLUDED.store_id, is_active = EXCLUDED.is_active`,
		string(cfg.Type), cfg.APIKey, cfg.StoreID, cfg.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert courier config: %w", err)
	}
	return nil
}
