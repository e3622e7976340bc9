package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"QullaScan/pkg/logger"
)

// MemoryQueue is a bounded in-process job queue served by a fixed worker pool.
// Messages are lost on shutdown once Stop's deadline passes.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool

	msgs   chan Message
	seq    atomic.Uint64
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed sync.Once
}

// NewMemoryQueue creates a queue; call RegisterJob and Start before Enqueue.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJobs registers multiple jobs.
func (q *MemoryQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

// RegisterJob registers a single job.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Debug("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start launches the workers.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("queue stopped")
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("memory queue started",
		logger.Int("workers", q.config.Workers),
		logger.Int("capacity", q.config.QueueSize))
	return nil
}

// Stop refuses new messages, lets workers drain what is buffered and waits
// for them until ctx is done.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.closed.Do(func() { close(q.msgs) })
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("timeout waiting for queue workers", logger.Int("pending", len(q.msgs)))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.cancel()
		q.logger.Info("memory queue stopped gracefully")
		return nil
	}
}

// Enqueue adds a message without blocking; a full buffer yields ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return ErrNotRunning
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg := Message{
		ID:        strconv.FormatUint(q.seq.Add(1), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case q.msgs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth is the number of buffered messages.
func (q *MemoryQueue) Depth() int { return len(q.msgs) }

// Capacity is the buffer size.
func (q *MemoryQueue) Capacity() int { return cap(q.msgs) }

// Context is cancelled once the queue has stopped or timed out stopping.
func (q *MemoryQueue) Context() context.Context { return q.ctx }

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	q.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for msg := range q.msgs {
		if q.ctx.Err() != nil {
			return
		}
		q.processMessage(msg)
	}
	q.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
}

func (q *MemoryQueue) processMessage(msg Message) {
	q.mu.RLock()
	job, exists := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !exists {
		q.logger.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := q.handle(job, msg)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	q.handleProcessingError(msg, job, err)
}

// handle turns a panicking job into an error.
func (q *MemoryQueue) handle(job Job, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Handle(q.ctx, msg.Payload)
}

func (q *MemoryQueue) handleProcessingError(msg Message, job Job, err error) {
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		return
	}
	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if !q.isRunning {
			return
		}
		select {
		case q.msgs <- msg:
		default:
			q.logger.Warn("retry dropped, queue full", logger.String("id", msg.ID))
		}
	})
}
