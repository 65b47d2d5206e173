package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"smartbin-telemetry/internal/common/logger"
	"smartbin-telemetry/internal/dashboard"

	"go.uber.org/zap"
)

func main() {
	apiURL := getEnv("DASHBOARD_API", "http://localhost:8050")
	interval, err := time.ParseDuration(getEnv("DASHBOARD_INTERVAL", "1s"))
	if err != nil || interval <= 0 {
		log.Fatalf("Invalid DASHBOARD_INTERVAL: %v", err)
	}
	color, _ := strconv.ParseBool(getEnv("DASHBOARD_COLOR", "true"))

	// 面板占用 stdout，日志走 stderr
	zl, err := logger.NewLogger(getEnv("LOG_LEVEL", "warn"), "console", "smartbin-dashboard")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info("Polling telemetry snapshot",
		zap.String("api", apiURL),
		zap.Duration("interval", interval),
	)

	poller := dashboard.NewPoller(apiURL, interval, zl)
	dashboard.Run(ctx, poller, interval, os.Stdout, dashboard.RenderOptions{
		Color:     color,
		Clear:     true,
		ShowTitle: true,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
