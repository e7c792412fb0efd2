package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/decoder"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/metrics"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/repository"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/rules"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/tracker"
)

// 遥测消息类型
const (
	KindHealth = "health"
	KindSleep  = "sleep"
)

// RecordPublisher 已接受记录的流式侧输出
type RecordPublisher interface {
	PublishRecord(ctx context.Context, rec *domain.VitalRecord) error
}

// DeviceCache 设备查询缓存（MQTT 高频路径用，可选）
type DeviceCache interface {
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	Put(ctx context.Context, d *domain.Device)
}

// PipelineService 遥测入库管道：
// 收原始消息 → 解码/合并 → 在位检查 → 规则检查 → 接受/丢弃/回收 → 入库
type PipelineService struct {
	devices   repository.DevicesRepository
	telemetry repository.TelemetryRepository
	tracker   *tracker.Tracker
	rules     *rules.Table
	cache     DeviceCache     // 可为 nil
	publisher RecordPublisher // 可为 nil
	logger    *zap.Logger

	now func() time.Time
}

// NewPipelineService 创建入库管道
func NewPipelineService(
	devices repository.DevicesRepository,
	telemetry repository.TelemetryRepository,
	tr *tracker.Tracker,
	table *rules.Table,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		devices:   devices,
		telemetry: telemetry,
		tracker:   tr,
		rules:     table,
		logger:    logger,
		now:       time.Now,
	}
}

// SetPublisher 配置 Redis Streams 侧输出（可选）
func (s *PipelineService) SetPublisher(p RecordPublisher) { s.publisher = p }

// SetDeviceCache 配置设备查询缓存（可选）
func (s *PipelineService) SetDeviceCache(c DeviceCache) { s.cache = c }

// SetClock 注入时钟（测试用）
func (s *PipelineService) SetClock(now func() time.Time) { s.now = now }

// Ingest 处理一条 (deviceId, kind, payload) 遥测消息。
// 未知设备返回 ErrNotFound；未知 kind 返回 ErrValidation；
// 规则/去重导致的丢弃静默完成（只记日志），不返回错误。
func (s *PipelineService) Ingest(ctx context.Context, deviceID, kind string, payload map[string]any) error {
	id, err := domain.NormalizeDeviceID(deviceID)
	if err != nil {
		return err
	}

	device, err := s.lookupDevice(ctx, id)
	if err != nil {
		return err
	}

	switch kind {
	case KindHealth:
		return s.ingestHealth(ctx, device, payload)
	case KindSleep:
		return s.ingestSleep(ctx, device, payload)
	default:
		return fmt.Errorf("%w: unknown telemetry kind %q", domain.ErrValidation, kind)
	}
}

// lookupDevice 缓存优先查询；缓存读失败降级直查
func (s *PipelineService) lookupDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	if s.cache != nil {
		if d, err := s.cache.Get(ctx, deviceID); err == nil && d != nil {
			return d, nil
		} else if err != nil {
			s.logger.Warn("Device cache read failed", zap.String("device_id", deviceID), zap.Error(err))
		}
	}
	d, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, d)
	}
	return d, nil
}

func (s *PipelineService) ingestHealth(ctx context.Context, device *domain.Device, payload map[string]any) error {
	now := s.now()

	// 基础记录：具名字段缺失即缺失，不报错
	rec := &domain.VitalRecord{DeviceID: device.DeviceID}
	rec.Temperature = numField(payload, "temperature")
	rec.Humidity = numField(payload, "humidity")
	rec.HeartRate = numField(payload, "heartRate")
	rec.Respiration = numField(payload, "respiration")
	rec.Stress = numField(payload, "stress")
	rec.HRV = numField(payload, "hrv")
	rec.Signals.Motion = flagField(payload, "motion")
	rec.Signals.Presence = flagField(payload, "presence")
	rec.Signals.Activity = numField(payload, "activity")
	rec.Signals.Battery = numField(payload, "battery")
	rec.Signals.Microphone = numField(payload, "microphone")

	// 扩展指标直通名单：命中即原样进指标袋（与是否带 line 无关）
	for _, key := range rules.ExtraMetricKeys() {
		if v := numField(payload, key); v != nil {
			rec.SetMetric(key, *v)
		}
	}

	// decoder 行：逐行独立解码，后行覆盖前行
	if lines := linesFromPayload(payload); len(lines) > 0 {
		rec.Raw = decoder.DecodeAll(lines, rec)
	}

	// 先在位检查（可短路），再规则检查
	decision := s.tracker.Evaluate(
		device.DeviceID, now,
		rec.Signals.Presence,
		rec.MetricView(),
		s.rules.ForType(device.DeviceType),
	)

	if decision.Retract {
		deleted, err := s.telemetry.DeleteRange(ctx, device.DeviceID, decision.RetractFrom, decision.RetractTo)
		if err != nil {
			metrics.IngestError("retract")
			return fmt.Errorf("failed to retract records for device %s: %w", device.DeviceID, err)
		}
		metrics.Retraction()
		s.logger.Info("Presence drop, retracted trailing records",
			zap.String("device_id", device.DeviceID),
			zap.Int64("deleted", deleted),
			zap.Time("from", decision.RetractFrom),
			zap.Time("to", decision.RetractTo),
		)
	}

	if !decision.Persist {
		metrics.IngestDropped(decision.DropReason)
		s.logger.Debug("Dropped health message",
			zap.String("device_id", device.DeviceID),
			zap.String("reason", decision.DropReason),
			zap.String("metric", decision.ViolatedMetric),
		)
		return nil
	}

	rec.Timestamp = now
	if err := s.telemetry.Insert(ctx, rec); err != nil {
		metrics.IngestError("persist")
		return fmt.Errorf("failed to persist vital record for device %s: %w", device.DeviceID, err)
	}

	s.afterAccept(ctx, device, rec, KindHealth)
	return nil
}

// ingestSleep 睡眠记录无门控，总是接受
func (s *PipelineService) ingestSleep(ctx context.Context, device *domain.Device, payload map[string]any) error {
	rec := &domain.VitalRecord{
		DeviceID:      device.DeviceID,
		Timestamp:     s.now(),
		SleepQuality:  strField(payload, "quality"),
		SleepDuration: numField(payload, "duration"),
	}
	if err := s.telemetry.Insert(ctx, rec); err != nil {
		metrics.IngestError("persist")
		return fmt.Errorf("failed to persist sleep record for device %s: %w", device.DeviceID, err)
	}

	s.afterAccept(ctx, device, rec, KindSleep)
	return nil
}

// afterAccept 接受后的统一副作用：设备上线、侧输出、计数。
// 注意：这里只改 status 标志，不走 profile 独占激活流程。
func (s *PipelineService) afterAccept(ctx context.Context, device *domain.Device, rec *domain.VitalRecord, kind string) {
	if err := s.devices.TouchActive(ctx, device.DeviceID, rec.Timestamp); err != nil {
		s.logger.Warn("Failed to touch device active",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRecord(ctx, rec); err != nil {
			s.logger.Warn("Failed to publish record to stream",
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
		}
	}
	metrics.IngestAccepted(kind)
}

// --- payload 字段读取 ---

func numField(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func flagField(payload map[string]any, key string) *bool {
	switch v := payload[key].(type) {
	case bool:
		b := v
		return &b
	case float64:
		b := v == 1
		return &b
	case int:
		b := v == 1
		return &b
	default:
		return nil
	}
}

func strField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func linesFromPayload(payload map[string]any) []string {
	var lines []string
	if v, ok := payload["line"].(string); ok && v != "" {
		lines = append(lines, v)
	}
	if arr, ok := payload["lines"].([]any); ok {
		for _, item := range arr {
			if v, ok := item.(string); ok && v != "" {
				lines = append(lines, v)
			}
		}
	}
	if arr, ok := payload["lines"].([]string); ok {
		lines = append(lines, arr...)
	}
	return lines
}
