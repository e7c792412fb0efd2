package repository

import (
	"context"
	"time"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// DevicesRepository 设备Repository接口
// 使用强类型领域模型，不使用map[string]any
type DevicesRepository interface {
	// 查询
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	List(ctx context.Context, filters DeviceFilters, page, size int) ([]*domain.Device, int, error)
	ListByProfile(ctx context.Context, profileID string) ([]*domain.Device, error)
	ActiveForProfile(ctx context.Context, profileID string) (*domain.Device, error) // 无活跃设备时返回 (nil, nil)

	// 创建 / 更新 / 删除
	Create(ctx context.Context, device *domain.Device) error
	Update(ctx context.Context, device *domain.Device) error
	Delete(ctx context.Context, deviceID string) error

	// 激活状态机
	// ActivateExclusive 在单事务内：停用 profile 下其余设备，再激活目标设备并绑定 profile。
	// 读者不得观察到同一 profile 同时两台 active。
	ActivateExclusive(ctx context.Context, deviceID, profileID string, now time.Time) error
	SetStatus(ctx context.Context, deviceID, status string) error

	// 遥测到达的副作用：status -> active，刷新 last_active_at
	TouchActive(ctx context.Context, deviceID string, now time.Time) error

	// 前缀分配器：返回 prefix（"NNNN-"）下已占用的最大 12 位十六进制序号，
	// 无设备时返回 -1
	HighestSuffix(ctx context.Context, prefix string) (int64, error)
}

// DeviceFilters 设备查询过滤器
type DeviceFilters struct {
	Status        []string // 状态过滤（inactive, active, maintenance）
	DeviceType    string
	Manufacturer  string
	ProfileID     string
	SearchKeyword string // device_id ILIKE 匹配
}
