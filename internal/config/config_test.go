package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.MQTT.Broker)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.True(t, strings.HasPrefix(cfg.MQTT.ClientID, "smartbin-telemetry-"))
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.Equal(t, 60*time.Second, cfg.MQTT.ConnectTimeout)
	assert.False(t, cfg.MQTT.AutoReconnect)

	assert.Equal(t, "garbage/telemetry", cfg.Telemetry.Topic)
	assert.Equal(t, ":8050", cfg.HTTP.Addr)

	assert.False(t, cfg.Mirror.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "smartbin:telemetry:snapshot", cfg.Mirror.SnapshotKey)
	assert.Equal(t, "smartbin:telemetry:stream", cfg.Mirror.Stream)
	assert.Equal(t, 30*time.Second, cfg.Mirror.SnapshotTTL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "", cfg.Log.File)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	t.Setenv("MQTT_BROKER", "34.55.234.96")
	t.Setenv("MQTT_PORT", "1884")
	t.Setenv("MQTT_USERNAME", "ESP32User")
	t.Setenv("MQTT_PASSWORD", "cpc357")
	t.Setenv("MQTT_CLIENT_ID", "bin-dashboard")
	t.Setenv("TELEMETRY_TOPIC", "bins/telemetry")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("REDIS_SNAPSHOT_TTL", "1m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "/var/log/smartbin.log")

	cfg, err := Load()
	require.NoError(t, err)

	// 验证环境变量覆盖
	assert.Equal(t, "34.55.234.96", cfg.MQTT.Broker)
	assert.Equal(t, 1884, cfg.MQTT.Port)
	assert.Equal(t, "ESP32User", cfg.MQTT.Username)
	assert.Equal(t, "cpc357", cfg.MQTT.Password)
	assert.Equal(t, "bin-dashboard", cfg.MQTT.ClientID)
	assert.Equal(t, "bins/telemetry", cfg.Telemetry.Topic)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.True(t, cfg.Mirror.Enabled)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Mirror.SnapshotTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/smartbin.log", cfg.Log.File)
}

func TestGetEnv(t *testing.T) {
	// 测试默认值
	os.Clearenv()
	value := getEnv("TEST_KEY", "default-value")
	assert.Equal(t, "default-value", value)

	// 测试环境变量存在
	t.Setenv("TEST_KEY", "env-value")
	value = getEnv("TEST_KEY", "default-value")
	assert.Equal(t, "env-value", value)
}

func TestGetEnvTyped_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_BOOL", "perhaps")
	t.Setenv("TEST_DURATION", "ten seconds")

	assert.True(t, getEnvBool("TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION", time.Second))
}
