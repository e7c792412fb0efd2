package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// PostgresUsersRepo 用户Repository实现（users / user_active_devices 表）
type PostgresUsersRepo struct {
	db *sql.DB
}

func NewPostgresUsersRepo(db *sql.DB) *PostgresUsersRepo {
	return &PostgresUsersRepo{db: db}
}

var _ UsersRepository = (*PostgresUsersRepo)(nil)

func (r *PostgresUsersRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, name, active_device_id FROM users WHERE user_id = $1`, userID).
		Scan(&u.UserID, &u.Name, &u.ActiveDeviceID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUsersRepo) SetActiveDevice(ctx context.Context, userID, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET active_device_id = $1 WHERE user_id = $2`, deviceID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	return nil
}

func (r *PostgresUsersRepo) ClearActiveDevice(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET active_device_id = NULL WHERE user_id = $1 AND active_device_id = $2`,
		userID, deviceID)
	return err
}

func (r *PostgresUsersRepo) AddActiveDevice(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_active_devices (user_id, device_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, device_id) DO NOTHING`,
		userID, deviceID)
	return err
}

func (r *PostgresUsersRepo) RemoveActiveDevice(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_active_devices WHERE user_id = $1 AND device_id = $2`,
		userID, deviceID)
	return err
}

func (r *PostgresUsersRepo) ListActiveDevices(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id FROM user_active_devices WHERE user_id = $1 ORDER BY device_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
