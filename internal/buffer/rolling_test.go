package buffer

import (
	"fmt"
	"sync"
	"testing"

	"smartbin-telemetry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(i int) models.Reading {
	return models.Reading{Timestamp: fmt.Sprintf("00:00:%02d", i%60), Distance: float64(i)}
}

func distances(rs []models.Reading) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Distance
	}
	return out
}

func TestRollingBuffer_LengthAndOrder(t *testing.T) {
	for _, n := range []int{0, 1, 19, 20, 21, 25, 47} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			b := NewRollingBuffer(DefaultCapacity)
			for i := 1; i <= n; i++ {
				b.Append(reading(i))
			}

			got := b.Snapshot()
			want := min(n, DefaultCapacity)
			require.Len(t, got, want)
			assert.Equal(t, want, b.Len())

			// 最后 want 个按原顺序出现
			for i, r := range got {
				assert.Equal(t, float64(n-want+i+1), r.Distance)
			}
		})
	}
}

func TestRollingBuffer_TwentyFirstEvictsOldest(t *testing.T) {
	b := NewRollingBuffer(20)
	for i := 1; i <= 20; i++ {
		b.Append(reading(i))
	}
	before := b.Snapshot()

	b.Append(reading(21))
	after := b.Snapshot()

	require.Len(t, after, 20)
	assert.Equal(t, distances(before[1:]), distances(after[:19]))
	assert.Equal(t, 21.0, after[19].Distance)
}

func TestRollingBuffer_SnapshotIsIndependentCopy(t *testing.T) {
	b := NewRollingBuffer(3)
	b.Append(reading(1))

	snap := b.Snapshot()
	snap[0].Distance = 99
	b.Append(reading(2))

	assert.Equal(t, []float64{1, 2}, distances(b.Snapshot()))
	assert.Len(t, snap, 1)
}

func TestRollingBuffer_EmptySnapshotNotNil(t *testing.T) {
	b := NewRollingBuffer(0)
	assert.Equal(t, DefaultCapacity, b.Cap())
	assert.NotNil(t, b.Snapshot())
	assert.Empty(t, b.Snapshot())
}

func TestRollingBuffer_ConcurrentReaders(t *testing.T) {
	b := NewRollingBuffer(DefaultCapacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			b.Append(reading(i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := b.Snapshot()
				assert.LessOrEqual(t, len(snap), DefaultCapacity)
				// 快照内部始终递增、连续
				for j := 1; j < len(snap); j++ {
					assert.Equal(t, snap[j-1].Distance+1, snap[j].Distance)
				}
			}
		}()
	}
	wg.Wait()
}
