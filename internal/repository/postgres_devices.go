package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// PostgresDevicesRepo 设备Repository实现（devices 表）
type PostgresDevicesRepo struct {
	db *sql.DB
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

// 确保实现了接口
var _ DevicesRepository = (*PostgresDevicesRepo)(nil)

const deviceColumns = `
	device_id, device_type, manufacturer, status,
	profile_id, user_id, last_active_at,
	firmware_version, valid_until, location,
	device_model_id, profile_version, created_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.DeviceID,
		&d.DeviceType,
		&d.Manufacturer,
		&d.Status,
		&d.ProfileID,
		&d.UserID,
		&d.LastActiveAt,
		&d.FirmwareVersion,
		&d.ValidUntil,
		&d.Location,
		&d.DeviceModelID,
		&d.ProfileVersion,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDevicesRepo) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresDevicesRepo) List(ctx context.Context, filters DeviceFilters, page, size int) ([]*domain.Device, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argN := 1

	if len(filters.Status) > 0 {
		where = append(where, fmt.Sprintf("status = ANY($%d)", argN))
		args = append(args, pq.Array(filters.Status))
		argN++
	}
	if filters.DeviceType != "" {
		where = append(where, fmt.Sprintf("device_type = $%d", argN))
		args = append(args, filters.DeviceType)
		argN++
	}
	if filters.Manufacturer != "" {
		where = append(where, fmt.Sprintf("manufacturer = $%d", argN))
		args = append(args, filters.Manufacturer)
		argN++
	}
	if filters.ProfileID != "" {
		where = append(where, fmt.Sprintf("profile_id = $%d", argN))
		args = append(args, filters.ProfileID)
		argN++
	}
	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf("device_id ILIKE $%d", argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM devices WHERE ` + strings.Join(where, " AND ")
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	args = append(args, size, (page-1)*size)

	q := `SELECT ` + deviceColumns + ` FROM devices WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY device_id LIMIT $%d OFFSET $%d`, argN, argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *PostgresDevicesRepo) ListByProfile(ctx context.Context, profileID string) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE profile_id = $1 ORDER BY device_id`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresDevicesRepo) ActiveForProfile(ctx context.Context, profileID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE profile_id = $1 AND status = $2 LIMIT 1`,
		profileID, domain.StatusActive)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresDevicesRepo) Create(ctx context.Context, d *domain.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			device_id, device_type, manufacturer, status,
			profile_id, user_id, last_active_at,
			firmware_version, valid_until, location,
			device_model_id, profile_version, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())`,
		d.DeviceID, d.DeviceType, d.Manufacturer, d.Status,
		d.ProfileID, d.UserID, d.LastActiveAt,
		d.FirmwareVersion, d.ValidUntil, d.Location,
		d.DeviceModelID, d.ProfileVersion,
	)
	if err != nil {
		// 23505 = unique_violation
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("%w: device %s already exists", domain.ErrConflict, d.DeviceID)
		}
		return err
	}
	return nil
}

func (r *PostgresDevicesRepo) Update(ctx context.Context, d *domain.Device) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			device_type = $2, manufacturer = $3, status = $4,
			profile_id = $5, user_id = $6, last_active_at = $7,
			firmware_version = $8, valid_until = $9, location = $10,
			device_model_id = $11, profile_version = $12
		WHERE device_id = $1`,
		d.DeviceID, d.DeviceType, d.Manufacturer, d.Status,
		d.ProfileID, d.UserID, d.LastActiveAt,
		d.FirmwareVersion, d.ValidUntil, d.Location,
		d.DeviceModelID, d.ProfileVersion,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, d.DeviceID)
	}
	return nil
}

func (r *PostgresDevicesRepo) Delete(ctx context.Context, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	return nil
}

// ActivateExclusive 同一事务内完成"先全停用、后激活一台"，
// 保证外部读者看不到同 profile 双活跃
func (r *PostgresDevicesRepo) ActivateExclusive(ctx context.Context, deviceID, profileID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE devices SET status = $1
		WHERE profile_id = $2 AND device_id <> $3 AND status = $4`,
		domain.StatusInactive, profileID, deviceID, domain.StatusActive,
	); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE devices SET status = $1, profile_id = $2, last_active_at = $3
		WHERE device_id = $4`,
		domain.StatusActive, profileID, now, deviceID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}

	return tx.Commit()
}

func (r *PostgresDevicesRepo) SetStatus(ctx context.Context, deviceID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = $1 WHERE device_id = $2`, status, deviceID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	return nil
}

func (r *PostgresDevicesRepo) TouchActive(ctx context.Context, deviceID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = $1, last_active_at = $2 WHERE device_id = $3`,
		domain.StatusActive, now, deviceID)
	return err
}

func (r *PostgresDevicesRepo) HighestSuffix(ctx context.Context, prefix string) (int64, error) {
	// device_id 形如 NNNN-XXXXXXXXXXXX；后缀按十六进制序号解释
	var maxID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(device_id) FROM devices WHERE device_id LIKE $1`, prefix+"%").Scan(&maxID)
	if err != nil {
		return 0, err
	}
	if !maxID.Valid {
		return -1, nil
	}
	suffix := strings.TrimPrefix(maxID.String, prefix)
	var n int64
	if _, err := fmt.Sscanf(suffix, "%012X", &n); err != nil {
		return 0, fmt.Errorf("unexpected device id suffix %q: %w", suffix, err)
	}
	return n, nil
}
