package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartbin-telemetry/internal/common/logger"
	"smartbin-telemetry/internal/config"
	"smartbin-telemetry/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zl, err := logger.NewLoggerWithFile(cfg.Log.Level, cfg.Log.Format, "smartbin-telemetry", logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("Starting smartbin-telemetry service",
		zap.String("mqtt_broker", cfg.MQTT.BrokerURL()),
		zap.String("topic", cfg.Telemetry.Topic),
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Bool("redis_mirror", cfg.Mirror.Enabled),
	)

	telemetryService := service.NewTelemetryService(cfg, zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := telemetryService.Start(ctx); err != nil {
		zl.Fatal("Failed to start telemetry service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zl.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-telemetryService.ServerErrors():
		zl.Error("HTTP server failed, shutting down", zap.Error(err))
	}

	// 优雅关闭
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := telemetryService.Stop(shutdownCtx); err != nil {
		zl.Error("Error during shutdown", zap.Error(err))
	}

	zl.Info("Service stopped")
}
