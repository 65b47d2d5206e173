// Package dashboard is the polling presentation loop: it fetches the
// telemetry snapshot on a fixed interval and renders it as text.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"time"

	httpapi "smartbin-telemetry/internal/http"
	"smartbin-telemetry/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SnapshotPath 遥测服务快照接口
const SnapshotPath = "/api/v1/telemetry/snapshot"

// Poller 通过 HTTP 拉取快照
type Poller struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewPoller 创建轮询客户端；timeout 应小于轮询间隔
func NewPoller(baseURL string, timeout time.Duration, logger *zap.Logger) *Poller {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Poller{
		httpClient: client,
		logger:     logger,
	}
}

// Fetch 拉取一次快照
func (p *Poller) Fetch(ctx context.Context) (models.Snapshot, error) {
	var result httpapi.Result[models.Snapshot]
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get(SnapshotPath)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if resp.IsError() {
		return models.Snapshot{}, fmt.Errorf("snapshot request failed: status %d", resp.StatusCode())
	}
	if result.Code != httpapi.ResultSuccess {
		return models.Snapshot{}, fmt.Errorf("snapshot request failed: %s", result.Message)
	}
	return result.Result, nil
}

// Run 每隔 interval 拉取并渲染一次，直到 ctx 取消
// 拉取失败时继续渲染上一次成功的快照（初始为默认快照）
func Run(ctx context.Context, p *Poller, interval time.Duration, out io.Writer, opts RenderOptions) {
	last := models.Snapshot{
		Readings:   []models.Reading{},
		LidStatus:  models.LidClosed,
		WasteLevel: models.WasteGreen,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if snap, err := p.Fetch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("Failed to poll telemetry snapshot", zap.Error(err))
		} else {
			last = snap
		}

		if _, err := io.WriteString(out, Render(last, opts)); err != nil {
			p.logger.Warn("Failed to render dashboard", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
