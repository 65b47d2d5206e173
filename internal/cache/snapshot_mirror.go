// Package cache mirrors the live telemetry snapshot into Redis so other
// services can read the current bin state without talking to MQTT.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	rediscommon "smartbin-telemetry/internal/common/redis"
	"smartbin-telemetry/internal/metrics"
	"smartbin-telemetry/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SnapshotSource 快照来源（*state.TelemetryState 实现）
type SnapshotSource interface {
	Snapshot() models.Snapshot
}

// MirrorOptions Redis 镜像参数
type MirrorOptions struct {
	SnapshotKey string
	Stream      string
	StreamLen   int64 // stream 上限，与窗口长度一致
	TTL         time.Duration
	OpTimeout   time.Duration
}

// SnapshotMirror 把最新快照写入 Redis
// Notify 不阻塞；多次通知合并为一次写入，只写最新状态
type SnapshotMirror struct {
	source  SnapshotSource
	client  *redis.Client
	opts    MirrorOptions
	metrics *metrics.Metrics
	logger  *zap.Logger

	signal chan struct{}

	mu      sync.Mutex
	lastSeq uint64
}

// NewSnapshotMirror 创建镜像
func NewSnapshotMirror(
	source SnapshotSource,
	client *redis.Client,
	opts MirrorOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SnapshotMirror {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 2 * time.Second
	}
	return &SnapshotMirror{
		source:  source,
		client:  client,
		opts:    opts,
		metrics: m,
		logger:  logger,
		signal:  make(chan struct{}, 1),
	}
}

// Notify 请求一次异步写入
func (m *SnapshotMirror) Notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Run 处理写入请求直到 ctx 取消
func (m *SnapshotMirror) Run(ctx context.Context) {
	m.logger.Info("Snapshot mirror started",
		zap.String("key", m.opts.SnapshotKey),
		zap.String("stream", m.opts.Stream),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.signal:
			opCtx, cancel := context.WithTimeout(ctx, m.opts.OpTimeout)
			if err := m.Flush(opCtx); err != nil {
				m.metrics.MirrorErrors.Inc()
				m.logger.Warn("Failed to mirror snapshot to Redis", zap.Error(err))
			}
			cancel()
		}
	}
}

// Flush writes the current snapshot and, when it carries a new reading,
// appends that reading to the capped stream.
func (m *SnapshotMirror) Flush(ctx context.Context) error {
	snap := m.source.Snapshot()

	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := m.client.Set(ctx, m.opts.SnapshotKey, jsonData, m.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	latest, ok := snap.Latest()
	if !ok || m.opts.Stream == "" || !m.isNew(snap.Sequence) {
		return nil
	}

	_, err = rediscommon.PublishToCappedStream(ctx, m.client, m.opts.Stream, m.opts.StreamLen, map[string]interface{}{
		"sequence":   int64(snap.Sequence),
		"timestamp":  latest.Timestamp,
		"distance":   latest.Distance,
		"lidStatus":  string(snap.LidStatus),
		"wasteLevel": string(snap.WasteLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to publish reading to stream: %w", err)
	}
	// XADD 成功后才记录序号，失败的读数在下一次写入时补上
	m.commit(snap.Sequence)
	return nil
}

// isNew 只有序号前进时才写 stream，避免重复
func (m *SnapshotMirror) isNew(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return seq > m.lastSeq
}

func (m *SnapshotMirror) commit(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq > m.lastSeq {
		m.lastSeq = seq
	}
}

// GetSnapshot 读取镜像中的快照
func GetSnapshot(ctx context.Context, client *redis.Client, key string) (*models.Snapshot, error) {
	val, err := client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("snapshot not found: %s", key)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
