package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/mqttclient"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/service"
)

// 订阅模式：/<deviceId>/health 与 /<deviceId>/sleep
const (
	topicHealth = "/+/health"
	topicSleep  = "/+/sleep"
)

// Consumer MQTT消息消费者：每条消息独立处理，失败只影响本条。
// at-least-once 投递下重复消息不做去重（变化门控之外）。
type Consumer struct {
	mqttClient *mqttclient.Client
	pipeline   *service.PipelineService
	qos        byte
	logger     *zap.Logger
}

// NewConsumer 创建MQTT消费者
func NewConsumer(
	mqttClient *mqttclient.Client,
	pipeline *service.PipelineService,
	qos byte,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		mqttClient: mqttClient,
		pipeline:   pipeline,
		qos:        qos,
		logger:     logger,
	}
}

// Start 订阅遥测主题并阻塞到 ctx 取消
func (c *Consumer) Start(ctx context.Context) error {
	for _, topic := range []string{topicHealth, topicSleep} {
		if err := c.mqttClient.Subscribe(topic, c.qos, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	c.logger.Info("MQTT consumer started",
		zap.String("health_topic", topicHealth),
		zap.String("sleep_topic", topicSleep),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(topicHealth, topicSleep); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理单条MQTT消息。
// pub/sub 无响应通道：所有错误只记日志后丢弃本条。
func (c *Consumer) handleMessage(topic string, payload []byte) error {
	deviceID, kind, err := ParseTopic(topic)
	if err != nil {
		c.logger.Warn("Ignoring message on unexpected topic",
			zap.String("topic", topic),
		)
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		c.logger.Error("Failed to unmarshal telemetry payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil
	}

	if err := c.pipeline.Ingest(context.Background(), deviceID, kind, data); err != nil {
		c.logger.Error("Failed to ingest telemetry",
			zap.String("device_id", deviceID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	return nil
}

// ParseTopic 解析 /<deviceId>/<kind> 主题
func ParseTopic(topic string) (deviceID, kind string, err error) {
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("unexpected topic format: %s", topic)
	}
	switch parts[1] {
	case service.KindHealth, service.KindSleep:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("unexpected topic kind: %s", topic)
	}
}
