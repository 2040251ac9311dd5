package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// GetUserByEmail возвращает сотрудника по e-mail.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, role, last_active FROM users WHERE lower(email) = $1`,
		email,
	)

	var (
		u          model.User
		role       string
		lastActive *time.Time
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &lastActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Role = model.UserRole(role)
	if lastActive != nil {
		u.LastActive = *lastActive
	}

	return &u, nil
}

// TouchUser отмечает время последней активности сотрудника.
func (r *PostgresRepository) TouchUser(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}
