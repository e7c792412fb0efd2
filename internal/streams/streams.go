package streams

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// Publisher 把已接受的体征记录发布到 Redis Streams，
// 供下游消费（报警评估、聚合等）。发布失败不影响入库。
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, logger: logger}
}

// PublishRecord 发布标准化记录（XADD，data 字段为 JSON）
func (p *Publisher) PublishRecord(ctx context.Context, rec *domain.VitalRecord) error {
	payload := map[string]any{
		"device_id": rec.DeviceID,
		"timestamp": rec.Timestamp.Unix(),
		"record":    rec,
	}
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return err
	}

	p.logger.Debug("Published vital record to Redis Streams",
		zap.String("device_id", rec.DeviceID),
		zap.String("stream", p.stream),
		zap.String("stream_id", id),
	)
	return nil
}
