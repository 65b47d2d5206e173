package consumer

import (
	"context"
	"fmt"
	"time"

	mqttcommon "smartbin-telemetry/internal/common/mqtt"
	"smartbin-telemetry/internal/config"
	"smartbin-telemetry/internal/metrics"
	"smartbin-telemetry/internal/models"
	"smartbin-telemetry/internal/state"

	"go.uber.org/zap"
)

// Subscriber 订阅所需的最小 MQTT 接口（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Notifier 每条消息写入共享状态后被通知（不得阻塞）
type Notifier interface {
	Notify()
}

// TelemetryConsumer 遥测主题消费者：解码消息并写入共享状态
type TelemetryConsumer struct {
	topic    string
	qos      byte
	client   Subscriber
	state    *state.TelemetryState
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewTelemetryConsumer 创建遥测消费者
func NewTelemetryConsumer(
	cfg *config.Config,
	client Subscriber,
	st *state.TelemetryState,
	m *metrics.Metrics,
	logger *zap.Logger,
) *TelemetryConsumer {
	return &TelemetryConsumer{
		topic:   cfg.Telemetry.Topic,
		qos:     cfg.MQTT.QoS,
		client:  client,
		state:   st,
		metrics: m,
		now:     time.Now,
		logger:  logger,
	}
}

// SetNotifier registers n to be told about every applied message.
func (c *TelemetryConsumer) SetNotifier(n Notifier) {
	c.notifier = n
}

// Start 订阅遥测主题并阻塞直到 ctx 取消
func (c *TelemetryConsumer) Start(ctx context.Context) error {
	if err := c.Subscribe(); err != nil {
		return err
	}

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Subscribe 订阅遥测主题后立即返回，消息由 MQTT 客户端回调处理
func (c *TelemetryConsumer) Subscribe() error {
	if c.topic == "" {
		return fmt.Errorf("telemetry topic not configured")
	}

	if err := c.client.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	c.logger.Info("Subscribed to topic",
		zap.String("topic", c.topic),
		zap.Uint8("qos", c.qos),
	)
	return nil
}

// Stop 停止消费者
func (c *TelemetryConsumer) Stop(ctx context.Context) error {
	if err := c.client.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Telemetry consumer stopped")
	return nil
}

// handleMessage 处理一条遥测消息；解码失败时整条丢弃，共享状态不变
func (c *TelemetryConsumer) handleMessage(topic string, payload []byte) error {
	c.metrics.MessagesReceived.Inc()
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	decoded, err := Decode(payload)
	if err != nil {
		c.metrics.MessagesDiscarded.Inc()
		return fmt.Errorf("discarding message on %s: %w", topic, err)
	}

	// 时间戳取接收时刻，不使用发布端的值
	reading := models.NewReading(decoded.Distance, c.now())
	c.state.Apply(reading, decoded.Status)

	c.metrics.MessagesApplied.Inc()
	c.metrics.WindowLength.Set(float64(c.state.Len()))

	if c.notifier != nil {
		c.notifier.Notify()
	}
	return nil
}
