package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"smartbin-telemetry/internal/buffer"
	"smartbin-telemetry/internal/cache"
	commonconfig "smartbin-telemetry/internal/common/config"
	mqttcommon "smartbin-telemetry/internal/common/mqtt"
	rediscommon "smartbin-telemetry/internal/common/redis"
	"smartbin-telemetry/internal/config"
	"smartbin-telemetry/internal/consumer"
	httpapi "smartbin-telemetry/internal/http"
	"smartbin-telemetry/internal/metrics"
	"smartbin-telemetry/internal/state"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// BrokerClient 服务使用的 MQTT 客户端能力
type BrokerClient interface {
	consumer.Subscriber
	Disconnect()
}

// DialFunc 建立 broker 连接，失败时返回包装了 mqttcommon.ErrConnection 的错误
type DialFunc func(cfg *commonconfig.MQTTConfig, logger *zap.Logger, opts ...mqttcommon.Option) (BrokerClient, error)

func dialMQTT(cfg *commonconfig.MQTTConfig, logger *zap.Logger, opts ...mqttcommon.Option) (BrokerClient, error) {
	client, err := mqttcommon.NewClient(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// connState 订阅者连接状态，供 /healthz 和指标使用
type connState struct {
	up      atomic.Bool
	metrics *metrics.Metrics
}

func (c *connState) set(up bool) {
	c.up.Store(up)
	c.metrics.SetConnected(up)
}

func (c *connState) IsConnected() bool {
	return c.up.Load()
}

// TelemetryService 遥测服务：MQTT 订阅 + 共享状态 + HTTP 快照接口 + 可选 Redis 镜像
type TelemetryService struct {
	config  *config.Config
	logger  *zap.Logger
	state   *state.TelemetryState
	metrics *metrics.Metrics
	conn    *connState
	router  *httpapi.Router
	server  *Server
	dial    DialFunc

	mu          sync.Mutex
	mqttClient  BrokerClient
	consumer    *consumer.TelemetryConsumer
	redis       *redis.Client
	mirror      *cache.SnapshotMirror
	serverErrCh chan error
	wg          sync.WaitGroup
}

// NewTelemetryService 创建服务（不做任何 I/O）
func NewTelemetryService(cfg *config.Config, logger *zap.Logger) *TelemetryService {
	m := metrics.New()
	st := state.NewTelemetryState(buffer.DefaultCapacity)
	conn := &connState{metrics: m}
	conn.set(false)

	router := httpapi.NewRouter(logger)
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(st, conn, logger))
	router.HandleHandler("/metrics", m.Handler())

	return &TelemetryService{
		config:      cfg,
		logger:      logger,
		state:       st,
		metrics:     m,
		conn:        conn,
		router:      router,
		server:      NewServer(cfg.HTTP.Addr, router, logger),
		dial:        dialMQTT,
		serverErrCh: make(chan error, 1),
	}
}

// Handler HTTP 路由（测试用）
func (s *TelemetryService) Handler() http.Handler {
	return s.router
}

// ServerErrors 在 HTTP 服务器异常退出时收到错误
func (s *TelemetryService) ServerErrors() <-chan error {
	return s.serverErrCh
}

// Start 启动服务组件
// 只有 HTTP 监听失败会返回错误；订阅者启动失败（含 ErrConnection）只记录，
// HTTP 继续提供最后一次（或默认）快照
func (s *TelemetryService) Start(ctx context.Context) error {
	s.logger.Info("Starting telemetry service components")

	if err := s.server.Listen(); err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(); err != nil {
			s.logger.Error("HTTP server exited", zap.Error(err))
			s.serverErrCh <- err
		}
	}()

	s.startMirror(ctx)

	if err := s.startSubscriber(); err != nil {
		msg := "Failed to start MQTT subscriber, serving last known snapshot"
		if errors.Is(err, mqttcommon.ErrConnection) {
			msg = "Failed to connect to MQTT broker, serving last known snapshot"
		}
		s.logger.Error(msg,
			zap.String("broker", s.config.MQTT.BrokerURL()),
			zap.String("topic", s.config.Telemetry.Topic),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Info("Telemetry service started successfully")
	return nil
}

// Addr HTTP 实际监听地址
func (s *TelemetryService) Addr() string {
	return s.server.Addr()
}

func (s *TelemetryService) startSubscriber() error {
	client, err := s.dial(&s.config.MQTT, s.logger,
		mqttcommon.WithOnConnectHandler(s.onConnect),
		mqttcommon.WithConnectionLostHandler(func(error) { s.conn.set(false) }),
	)
	if err != nil {
		s.conn.set(false)
		return err
	}
	s.conn.set(true)

	c := consumer.NewTelemetryConsumer(s.config, client, s.state, s.metrics, s.logger)
	s.mu.Lock()
	if s.mirror != nil {
		c.SetNotifier(s.mirror)
	}
	s.mu.Unlock()

	// 消息由 paho 的回调 goroutine 驱动，这里无需常驻 goroutine
	if err := c.Subscribe(); err != nil {
		client.Disconnect()
		s.conn.set(false)
		return err
	}

	s.mu.Lock()
	s.mqttClient = client
	s.consumer = c
	s.mu.Unlock()
	return nil
}

// onConnect 首次连接时 consumer 尚未创建；自动重连后需要重新订阅（clean session）
func (s *TelemetryService) onConnect() {
	s.conn.set(true)

	s.mu.Lock()
	c := s.consumer
	s.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.Subscribe(); err != nil {
		s.logger.Error("Failed to resubscribe after reconnect", zap.Error(err))
	}
}

func (s *TelemetryService) startMirror(ctx context.Context) {
	if !s.config.Mirror.Enabled {
		return
	}

	client, err := rediscommon.Connect(ctx, &s.config.Redis)
	if err != nil {
		s.logger.Warn("Redis unavailable, snapshot mirror disabled",
			zap.String("addr", s.config.Redis.Addr),
			zap.Error(err),
		)
		return
	}

	mirror := cache.NewSnapshotMirror(s.state, client, cache.MirrorOptions{
		SnapshotKey: s.config.Mirror.SnapshotKey,
		Stream:      s.config.Mirror.Stream,
		StreamLen:   buffer.DefaultCapacity,
		TTL:         s.config.Mirror.SnapshotTTL,
	}, s.metrics, s.logger)

	s.mu.Lock()
	s.redis = client
	s.mirror = mirror
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		mirror.Run(ctx)
	}()
	// 启动时写一次默认快照
	mirror.Notify()
}

// Stop 停止服务；ctx 应已取消或即将取消，以便后台 goroutine 退出
func (s *TelemetryService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping telemetry service")

	s.mu.Lock()
	c, client, redisClient := s.consumer, s.mqttClient, s.redis
	s.mu.Unlock()

	if c != nil {
		if err := c.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	if client != nil {
		client.Disconnect()
		s.conn.set(false)
	}

	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	s.wg.Wait()

	if redisClient != nil {
		_ = redisClient.Close()
	}

	s.logger.Info("Telemetry service stopped")
	return nil
}
