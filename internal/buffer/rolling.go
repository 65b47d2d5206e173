// Package buffer holds the fixed-size window of recent readings.
package buffer

import (
	"sync"

	"smartbin-telemetry/internal/models"
)

// DefaultCapacity 滚动窗口长度
const DefaultCapacity = 20

// RollingBuffer 固定容量的环形缓冲区，满后覆盖最旧的读数（FIFO）
// 支持一个写者、多个读者并发访问
type RollingBuffer struct {
	mu    sync.RWMutex
	buf   []models.Reading
	pos   int // 下一个写入位置
	count int
}

// NewRollingBuffer 创建容量为 capacity 的缓冲区，capacity <= 0 时使用 DefaultCapacity
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RollingBuffer{
		buf: make([]models.Reading, capacity),
	}
}

// Append adds r at the tail, evicting the oldest reading once full.
func (b *RollingBuffer) Append(r models.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf[b.pos] = r
	b.pos = (b.pos + 1) % len(b.buf)
	if b.count < len(b.buf) {
		b.count++
	}
}

// Snapshot returns a copy of the contents in chronological order.
// The result is never nil so it encodes as [] rather than null.
func (b *RollingBuffer) Snapshot() []models.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]models.Reading, b.count)
	if b.count < len(b.buf) {
		copy(result, b.buf[:b.count])
	} else {
		n := copy(result, b.buf[b.pos:])
		copy(result[n:], b.buf[:b.pos])
	}
	return result
}

func (b *RollingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

func (b *RollingBuffer) Cap() int {
	return len(b.buf)
}
