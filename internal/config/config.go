package config

import (
	"os"
	"strconv"
	"time"

	"smartbin-telemetry/internal/common/config"

	"github.com/google/uuid"
)

// Config 遥测服务配置
type Config struct {
	MQTT  config.MQTTConfig
	Redis config.RedisConfig

	Telemetry struct {
		Topic string // 固定订阅主题，如 "garbage/telemetry"
	}

	HTTP struct {
		Addr string
	}

	// Redis 快照镜像（可选）
	Mirror struct {
		Enabled     bool
		SnapshotKey string
		Stream      string
		SnapshotTTL time.Duration
	}

	Log struct {
		Level  string
		Format string
		File   string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MQTT.Broker = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.ClientID = "smartbin-telemetry-" + uuid.NewString()[:8]
	cfg.MQTT.QoS = 0
	cfg.MQTT.ConnectTimeout = 60 * time.Second
	cfg.MQTT.KeepAlive = 60 * time.Second
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Telemetry.Topic = getEnv("TELEMETRY_TOPIC", "garbage/telemetry")
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8050")

	cfg.Mirror.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Mirror.SnapshotKey = getEnv("REDIS_SNAPSHOT_KEY", "smartbin:telemetry:snapshot")
	cfg.Mirror.Stream = getEnv("REDIS_STREAM", "smartbin:telemetry:stream")
	cfg.Mirror.SnapshotTTL = getEnvDuration("REDIS_SNAPSHOT_TTL", 30*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	cfg.Log.File = getEnv("LOG_FILE", "")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
