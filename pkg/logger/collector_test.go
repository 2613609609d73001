package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "fetch failed", map[string]interface{}{"trigger": "manual"}, "session.go:1")
	}
	c.AddLog("error", "fetch failed", map[string]interface{}{"trigger": "periodic"}, "session.go:1")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Equal(t, []string{"logs"}, pub.topics)
	require.Len(t, pub.batches[0], 2)

	counts := map[interface{}]int{}
	for _, e := range pub.batches[0] {
		counts[e.Fields["trigger"]] = e.Count
	}
	require.Equal(t, 3, counts["manual"])
	require.Equal(t, 1, counts["periodic"])
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "a", nil, "x:1")
	c.AddLog("error", "b", nil, "x:2")

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.batches) == 1 && len(pub.batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	l.Error("boom", String("identifier", "005930"))
	l.Warn("not collected")
	l.CloseCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	require.Equal(t, "boom", pub.batches[0][0].Message)
	require.Equal(t, "005930", pub.batches[0][0].Fields["identifier"])
}

func TestChildLoggerSharesCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	child := l.With(String("service", "tickchart"))
	child.Error("child failure")
	child.CloseCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	require.Equal(t, "child failure", pub.batches[0][0].Message)
}
