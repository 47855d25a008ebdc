package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gaslink/metrics"
)

// Task is one unit of work that must outlive the request that produced it.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs tasks on a fixed worker pool fed by a bounded queue.
// Submit never blocks: when the queue is full the task gets its own
// goroutine instead. Every task runs on a fresh context with its own
// timeout; errors and panics are logged and swallowed.
type Dispatcher struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	in      chan Task
	workers int
	timeout time.Duration

	mu       sync.RWMutex
	stopped  bool
	pool     sync.WaitGroup
	overflow sync.WaitGroup
}

func NewDispatcher(log *zap.Logger, m *metrics.Metrics, workers, buffer int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		log:     log,
		metrics: m,
		in:      make(chan Task, buffer),
		workers: workers,
		timeout: timeout,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.pool.Add(1)
		go d.loop()
	}
}

// Stop refuses new tasks, then waits for queued and overflow tasks to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.in)
	d.mu.Unlock()

	d.pool.Wait()
	d.overflow.Wait()
}

// Submit hands t off. It returns false only after Stop.
func (d *Dispatcher) Submit(t Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.log.Warn("task rejected after shutdown", zap.String("task", t.Name))
		d.metrics.UsageSubmission("rejected")
		return false
	}

	select {
	case d.in <- t:
		d.metrics.UsageSubmission("queued")
	default:
		// queue full
		d.metrics.UsageSubmission("overflow")
		d.overflow.Add(1)
		go func() {
			defer d.overflow.Done()
			d.run(t)
		}()
	}
	return true
}

func (d *Dispatcher) loop() {
	defer d.pool.Done()
	for t := range d.in {
		d.run(t)
	}
}

func (d *Dispatcher) run(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			d.log.Error("task panicked", zap.String("task", t.Name), zap.Any("panic", r))
		}
		d.metrics.UsageTask(t.Name, err)
	}()

	if err = t.Run(ctx); err != nil {
		d.log.Warn("task failed", zap.String("task", t.Name), zap.Error(err))
	}
}
