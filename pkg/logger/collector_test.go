package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 50,
		Topic:          "scanner.logs",
		Source:         "test",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		l.Error("provider failed", String("symbol", "AAPL"), Error(errors.New("timeout")))
	}
	l.Error("provider failed", String("symbol", "MSFT"), Error(errors.New("timeout")))

	if got := l.collector.Pending(); got != 2 {
		t.Fatalf("pending: want 2 got %d", got)
	}

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 {
		t.Fatalf("batches: want 1 got %d", len(pub.batches))
	}
	if pub.topic != "scanner.logs" {
		t.Fatalf("topic: got %q", pub.topic)
	}
	total := 0
	for _, e := range pub.batches[0].Entries {
		total += e.Count
	}
	if total != 4 {
		t.Fatalf("aggregated count: want 4 got %d", total)
	}
}

func TestWithKeepsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Publisher: pub})
	defer l.RemoveCollector()

	child := l.With("scan")
	child.Error("boom")
	if l.collector.Pending() != 1 {
		t.Fatalf("child error not collected")
	}
}
