package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	mqttcommon "smartbin-telemetry/internal/common/mqtt"
	"smartbin-telemetry/internal/buffer"
	"smartbin-telemetry/internal/config"
	"smartbin-telemetry/internal/metrics"
	"smartbin-telemetry/internal/models"
	"smartbin-telemetry/internal/state"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBroker 记录订阅并可直接“发布”消息到 handler
type fakeBroker struct {
	mu           sync.Mutex
	handlers     map[string]mqttcommon.MessageHandler
	unsubscribed []string
	subscribeErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqttcommon.MessageHandler)}
}

func (f *fakeBroker) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
		f.unsubscribed = append(f.unsubscribed, t)
	}
	return nil
}

func (f *fakeBroker) publish(topic string, payload string) error {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no subscriber for %s", topic)
	}
	return h(topic, []byte(payload))
}

func (f *fakeBroker) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Notify() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

const testTopic = "garbage/telemetry"

func setupConsumer(t *testing.T) (*fakeBroker, *state.TelemetryState, *metrics.Metrics, *TelemetryConsumer) {
	cfg := &config.Config{}
	cfg.Telemetry.Topic = testTopic

	broker := newFakeBroker()
	st := state.NewTelemetryState(buffer.DefaultCapacity)
	m := metrics.New()
	c := NewTelemetryConsumer(cfg, broker, st, m, zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 12, 1, 14, 30, 5, 0, time.Local) }

	return broker, st, m, c
}

// startConsumer 启动消费者，等待订阅完成
func startConsumer(t *testing.T, broker *fakeBroker, c *TelemetryConsumer) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return broker.subscribed(testTopic) }, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestTelemetryConsumer_EndToEndSingleMessage(t *testing.T) {
	broker, st, m, c := setupConsumer(t)
	startConsumer(t, broker, c)

	err := broker.publish(testTopic, `{"distance": 15, "lidStatus":"Open", "wasteLevel":"yellow"}`)
	require.NoError(t, err)

	snap := st.Snapshot()
	require.Len(t, snap.Readings, 1)
	assert.Equal(t, 15.0, snap.Readings[0].Distance)
	assert.Equal(t, "14:30:05", snap.Readings[0].Timestamp)
	assert.Equal(t, models.LidOpen, snap.LidStatus)
	assert.Equal(t, models.WasteYellow, snap.WasteLevel)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesApplied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowLength))
}

func TestTelemetryConsumer_EndToEndWindowOverflow(t *testing.T) {
	broker, st, _, c := setupConsumer(t)
	startConsumer(t, broker, c)

	for i := 1; i <= 25; i++ {
		require.NoError(t, broker.publish(testTopic, fmt.Sprintf(`{"distance": %d}`, i)))
	}

	snap := st.Snapshot()
	require.Len(t, snap.Readings, 20)
	for i, r := range snap.Readings {
		assert.Equal(t, float64(i+6), r.Distance)
	}
}

func TestTelemetryConsumer_MalformedMessageLeavesStateUnchanged(t *testing.T) {
	broker, st, m, c := setupConsumer(t)
	startConsumer(t, broker, c)

	require.NoError(t, broker.publish(testTopic, `{"distance": 40, "lidStatus":"Open", "wasteLevel":"red"}`))
	before := st.Snapshot()

	err := broker.publish(testTopic, `{"distance": 41, "lidStatus":`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	assert.Equal(t, before, st.Snapshot())
	assert.Equal(t, uint64(1), st.Applied())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDiscarded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesReceived))

	// 之后的正常消息继续处理
	require.NoError(t, broker.publish(testTopic, `{"distance": 42}`))
	assert.Len(t, st.Snapshot().Readings, 2)
}

func TestTelemetryConsumer_NotifiesAfterApply(t *testing.T) {
	broker, _, _, c := setupConsumer(t)
	n := &countingNotifier{}
	c.SetNotifier(n)
	startConsumer(t, broker, c)

	require.NoError(t, broker.publish(testTopic, `{"distance": 1}`))
	_ = broker.publish(testTopic, `garbage`)
	require.NoError(t, broker.publish(testTopic, `{"distance": 2}`))

	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Equal(t, 2, n.n)
}

func TestTelemetryConsumer_StartSubscribeError(t *testing.T) {
	broker, _, _, c := setupConsumer(t)
	broker.subscribeErr = errors.New("not authorized")

	err := c.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestTelemetryConsumer_StartWithoutTopic(t *testing.T) {
	cfg := &config.Config{}
	c := NewTelemetryConsumer(cfg, newFakeBroker(), state.NewTelemetryState(0), metrics.New(), zap.NewNop())

	err := c.Start(context.Background())

	assert.Error(t, err)
}

func TestTelemetryConsumer_Stop(t *testing.T) {
	broker, _, _, c := setupConsumer(t)
	startConsumer(t, broker, c)

	require.NoError(t, c.Stop(context.Background()))

	assert.False(t, broker.subscribed(testTopic))
	assert.Equal(t, []string{testTopic}, broker.unsubscribed)
}
