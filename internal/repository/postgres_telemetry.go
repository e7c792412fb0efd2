package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// PostgresTelemetryRepo 体征时序Repository实现（vital_records 表）。
// 指标袋/信号袋存 JSONB，原始行存 TEXT。
type PostgresTelemetryRepo struct {
	db *sql.DB
}

func NewPostgresTelemetryRepo(db *sql.DB) *PostgresTelemetryRepo {
	return &PostgresTelemetryRepo{db: db}
}

var _ TelemetryRepository = (*PostgresTelemetryRepo)(nil)

func (r *PostgresTelemetryRepo) Insert(ctx context.Context, rec *domain.VitalRecord) error {
	var metricsJSON, signalsJSON []byte
	var err error
	if len(rec.Metrics) > 0 {
		if metricsJSON, err = json.Marshal(rec.Metrics); err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
	}
	if signalsJSON, err = json.Marshal(rec.Signals); err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	return r.db.QueryRowContext(ctx, `
		INSERT INTO vital_records (
			device_id, ts,
			temperature, humidity, heart_rate, respiration, stress, hrv,
			sleep_quality, sleep_duration,
			metrics, signals, raw
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id`,
		rec.DeviceID, rec.Timestamp,
		rec.Temperature, rec.Humidity, rec.HeartRate, rec.Respiration, rec.Stress, rec.HRV,
		nullIfEmpty(rec.SleepQuality), rec.SleepDuration,
		nullIfNil(metricsJSON), signalsJSON, nullIfEmpty(rec.Raw),
	).Scan(&rec.ID)
}

func (r *PostgresTelemetryRepo) QueryRange(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]*domain.VitalRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, ts,
			temperature, humidity, heart_rate, respiration, stress, hrv,
			COALESCE(sleep_quality, ''), sleep_duration,
			metrics, signals, COALESCE(raw, '')
		FROM vital_records
		WHERE device_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts
		LIMIT $4`,
		deviceID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.VitalRecord{}
	for rows.Next() {
		var rec domain.VitalRecord
		var metricsJSON, signalsJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.DeviceID, &rec.Timestamp,
			&rec.Temperature, &rec.Humidity, &rec.HeartRate, &rec.Respiration, &rec.Stress, &rec.HRV,
			&rec.SleepQuality, &rec.SleepDuration,
			&metricsJSON, &signalsJSON, &rec.Raw,
		); err != nil {
			return nil, err
		}
		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics for record %d: %w", rec.ID, err)
			}
		}
		if len(signalsJSON) > 0 {
			if err := json.Unmarshal(signalsJSON, &rec.Signals); err != nil {
				return nil, fmt.Errorf("failed to unmarshal signals for record %d: %w", rec.ID, err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *PostgresTelemetryRepo) DeleteRange(ctx context.Context, deviceID string, from, to time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM vital_records WHERE device_id = $1 AND ts >= $2 AND ts <= $3`,
		deviceID, from, to)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresTelemetryRepo) Summary(ctx context.Context, deviceID string, from, to time.Time) (*VitalSummary, error) {
	var s VitalSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			MIN(heart_rate), MAX(heart_rate), AVG(heart_rate),
			MIN(respiration), MAX(respiration),
			AVG(temperature)
		FROM vital_records
		WHERE device_id = $1 AND ts >= $2 AND ts <= $3`,
		deviceID, from, to).
		Scan(&s.Count,
			&s.HeartRateMin, &s.HeartRateMax, &s.HeartRateMean,
			&s.RespirationMin, &s.RespirationMax,
			&s.TemperatureMean)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
