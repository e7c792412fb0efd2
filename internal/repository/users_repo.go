package repository

import (
	"context"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// UsersRepository 用户Repository接口。
// 两套活跃设备关系独立维护：单一指针（active_device_id 列）
// 与集合（user_active_devices 表）。
type UsersRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)

	// 单一指针
	SetActiveDevice(ctx context.Context, userID, deviceID string) error
	// ClearActiveDevice 仅当指针指向 deviceID 时清空
	ClearActiveDevice(ctx context.Context, userID, deviceID string) error

	// 集合
	AddActiveDevice(ctx context.Context, userID, deviceID string) error
	RemoveActiveDevice(ctx context.Context, userID, deviceID string) error
	ListActiveDevices(ctx context.Context, userID string) ([]string, error)
}
