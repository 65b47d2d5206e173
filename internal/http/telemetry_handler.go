package httpapi

import (
	"net/http"

	"smartbin-telemetry/internal/models"

	"go.uber.org/zap"
)

// SnapshotProvider 快照读取接口（*state.TelemetryState 实现）
type SnapshotProvider interface {
	Snapshot() models.Snapshot
}

// ConnectionChecker reports whether the MQTT subscriber is live.
type ConnectionChecker interface {
	IsConnected() bool
}

// TelemetryHandler 供展示层轮询的只读接口
type TelemetryHandler struct {
	snapshots SnapshotProvider
	conn      ConnectionChecker
	logger    *zap.Logger
}

func NewTelemetryHandler(snapshots SnapshotProvider, conn ConnectionChecker, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{snapshots: snapshots, conn: conn, logger: logger}
}

// GetSnapshot GET /api/v1/telemetry/snapshot
// 订阅者未连接时仍返回最后一次（或默认）快照
func (h *TelemetryHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.snapshots.Snapshot()))
}

// HealthStatus /healthz 响应体
type HealthStatus struct {
	SubscriberConnected bool   `json:"subscriberConnected"`
	WindowLength        int    `json:"windowLength"`
	Sequence            uint64 `json:"sequence"`
}

// Health GET /healthz
func (h *TelemetryHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Snapshot()
	status := HealthStatus{
		SubscriberConnected: h.conn != nil && h.conn.IsConnected(),
		WindowLength:        len(snap.Readings),
		Sequence:            snap.Sequence,
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
