package repository

import (
	"context"
	"time"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// VitalSummary 单设备时间段的简单汇总统计
type VitalSummary struct {
	Count          int      `json:"count"`
	HeartRateMin   *float64 `json:"heartRateMin,omitempty"`
	HeartRateMax   *float64 `json:"heartRateMax,omitempty"`
	HeartRateMean  *float64 `json:"heartRateMean,omitempty"`
	RespirationMin *float64 `json:"respirationMin,omitempty"`
	RespirationMax *float64 `json:"respirationMax,omitempty"`
	TemperatureMean *float64 `json:"temperatureMean,omitempty"`
}

// TelemetryRepository 体征时序Repository接口。
// 存储视为按 (device_id, ts) 排序的追加集合：范围查询、范围删除。
type TelemetryRepository interface {
	Insert(ctx context.Context, rec *domain.VitalRecord) error
	QueryRange(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]*domain.VitalRecord, error)
	// DeleteRange 回收 [from, to] 内的记录，返回删除条数
	DeleteRange(ctx context.Context, deviceID string, from, to time.Time) (int64, error)
	Summary(ctx context.Context, deviceID string, from, to time.Time) (*VitalSummary, error)
}
