// Package state owns the shared telemetry state: the rolling window of
// readings plus the latest device status.
package state

import (
	"sync"

	"smartbin-telemetry/internal/buffer"
	"smartbin-telemetry/internal/models"
)

// TelemetryState 进程内共享状态：读数窗口 + 设备状态
// 一条消息的追加与状态替换在同一把锁内完成，读者不会看到错配的组合
type TelemetryState struct {
	mu       sync.RWMutex
	readings *buffer.RollingBuffer
	status   models.DeviceStatus
	applied  uint64
}

// NewTelemetryState 创建空窗口 + 默认状态
func NewTelemetryState(capacity int) *TelemetryState {
	return &TelemetryState{
		readings: buffer.NewRollingBuffer(capacity),
		status:   models.DefaultDeviceStatus(),
	}
}

// Apply commits one decoded message.
func (s *TelemetryState) Apply(r models.Reading, status models.DeviceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings.Append(r)
	s.status = status
	s.applied++
}

// Snapshot 返回一致的时间点拷贝，从未收到消息时为空窗口 + 默认状态
func (s *TelemetryState) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.Snapshot{
		Sequence:   s.applied,
		Readings:   s.readings.Snapshot(),
		LidStatus:  s.status.LidStatus,
		WasteLevel: s.status.WasteLevel,
	}
}

// Applied returns how many messages have been committed.
func (s *TelemetryState) Applied() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}

// Len 当前窗口长度
func (s *TelemetryState) Len() int {
	return s.readings.Len()
}
