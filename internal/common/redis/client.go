package redis

import (
	"context"
	"fmt"
	"time"

	"smartbin-telemetry/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// 镜像只做少量小写入，连接池和超时保持较小，避免 Redis 故障拖住进程
const (
	dialTimeout = 2 * time.Second
	ioTimeout   = time.Second
	poolSize    = 2
)

// NewRedisClient 创建Redis客户端（不建立连接）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolSize:     poolSize,
	})
}

// Connect 创建客户端并 PING 一次；失败时关闭客户端并返回错误
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := NewRedisClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Addr, err)
	}
	return client, nil
}
