package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"QullaScan/pkg/logger"
)

type countJob struct {
	n     int32
	block chan struct{}
	fail  int32
}

func (j *countJob) Name() string { return "count" }
func (j *countJob) Type() string { return "count" }
func (j *countJob) Handle(ctx context.Context, payload interface{}) error {
	if j.block != nil {
		<-j.block
	}
	if atomic.AddInt32(&j.fail, -1) >= 0 {
		return errors.New("transient")
	}
	atomic.AddInt32(&j.n, 1)
	return nil
}

func TestMemoryQueueProcessesAndDrains(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2, QueueSize: 10})
	job := &countJob{}
	q.RegisterJob(job)
	if err := q.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), "count", i); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if atomic.LoadInt32(&job.n) != 5 {
		t.Fatalf("processed %d of 5", job.n)
	}
	if err := q.Enqueue(context.Background(), "count", 0); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("enqueue after stop: %v", err)
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, QueueSize: 1})
	job := &countJob{block: make(chan struct{})}
	q.RegisterJob(job)
	_ = q.Start()

	var full bool
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), "count", i); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatalf("expected ErrQueueFull with a blocked worker")
	}
	if d := q.Depth(); d > q.Capacity() {
		t.Fatalf("depth %d exceeds capacity", d)
	}
	close(job.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = q.Stop(ctx)
}

func TestMemoryQueueRetries(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, QueueSize: 4, RetryLimit: 1, RetryDelay: 10 * time.Millisecond})
	job := &countJob{fail: 1}
	q.RegisterJob(job)
	_ = q.Start()
	_ = q.Enqueue(context.Background(), "count", nil)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&job.n) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&job.n) != 1 {
		t.Fatalf("retry did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = q.Stop(ctx)
}

func TestParsePayload(t *testing.T) {
	type req struct {
		Symbols []string `json:"symbols"`
	}
	got, err := ParsePayload[req](map[string]interface{}{"symbols": []interface{}{"AAPL"}})
	if err != nil || len(got.Symbols) != 1 {
		t.Fatalf("map payload: %v %v", got, err)
	}
	got, err = ParsePayload[req]([]byte(`{"symbols":["A","B"]}`))
	if err != nil || len(got.Symbols) != 2 {
		t.Fatalf("bytes payload: %v %v", got, err)
	}
}
