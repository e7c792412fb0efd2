package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

const deviceKeyPrefix = "dozemate:device:"

// DeviceCache 设备查询缓存（MQTT 高频路径减轻 devices 表压力）。
// 缓存失败只记日志降级直查，不影响管道。
type DeviceCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeviceCache(kv KV, ttl time.Duration, logger *zap.Logger) *DeviceCache {
	return &DeviceCache{kv: kv, ttl: ttl, logger: logger}
}

func deviceKey(deviceID string) string {
	return fmt.Sprintf("%s%s", deviceKeyPrefix, deviceID)
}

// Get 读取缓存的设备；未命中返回 (nil, nil)
func (c *DeviceCache) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	raw, err := c.kv.Get(ctx, deviceKey(deviceID))
	if err != nil {
		if err == ErrMiss {
			return nil, nil
		}
		return nil, err
	}
	var d domain.Device
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached device: %w", err)
	}
	return &d, nil
}

// Put 写入设备缓存（带 TTL）
func (c *DeviceCache) Put(ctx context.Context, d *domain.Device) {
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Warn("Failed to marshal device for cache", zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, deviceKey(d.DeviceID), string(data), c.ttl); err != nil {
		c.logger.Warn("Failed to set device cache",
			zap.String("device_id", d.DeviceID),
			zap.Error(err),
		)
	}
}

// Invalidate 设备变更后删除缓存项
func (c *DeviceCache) Invalidate(ctx context.Context, deviceID string) {
	if err := c.kv.Del(ctx, deviceKey(deviceID)); err != nil {
		c.logger.Warn("Failed to invalidate device cache",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}
