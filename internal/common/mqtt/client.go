package mqtt

import (
	"errors"
	"fmt"
	"time"

	"smartbin-telemetry/internal/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrConnection broker 不可达、认证被拒或连接超时
var ErrConnection = errors.New("mqtt connection failed")

// DefaultConnectTimeout 未配置时的连接超时
const DefaultConnectTimeout = 60 * time.Second

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// Option 客户端可选项
type Option func(*options)

type options struct {
	onConnectionLost func(error)
	onConnect        func()
}

// WithConnectionLostHandler 连接意外断开时回调
func WithConnectionLostHandler(fn func(error)) Option {
	return func(o *options) { o.onConnectionLost = fn }
}

// WithOnConnectHandler 每次（重）连接成功时回调
func WithOnConnectHandler(fn func()) Option {
	return func(o *options) { o.onConnect = fn }
}

// Client MQTT客户端封装
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger
}

// NewClient 创建MQTT客户端并连接 broker，超时或失败时返回包装了 ErrConnection 的错误
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	clientOpts := newClientOptions(cfg, logger, o)
	client := mqtt.NewClient(clientOpts)

	timeout := connectTimeout(cfg)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: timed out after %s", ErrConnection, cfg.BrokerURL(), timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, cfg.BrokerURL(), err)
	}

	return &Client{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

func newClientOptions(cfg *config.MQTTConfig, logger *zap.Logger, o *options) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// 默认不自动重连：断线后订阅者停止，快照保持最后状态
	opts.SetAutoReconnect(cfg.AutoReconnect)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	// 固定 3.1.1：CONNACK 拒绝时直接返回，不再回退 3.1 重试
	opts.SetProtocolVersion(4)
	opts.SetConnectTimeout(connectTimeout(cfg))
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost",
			zap.String("broker", cfg.BrokerURL()),
			zap.Bool("auto_reconnect", cfg.AutoReconnect),
			zap.Error(err),
		)
		if o.onConnectionLost != nil {
			o.onConnectionLost(err)
		}
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.BrokerURL()))
		if o.onConnect != nil {
			o.onConnect()
		}
	})

	return opts
}

func connectTimeout(cfg *config.MQTTConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// Subscribe 订阅主题；handler 返回的错误只记录，不中断处理
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
