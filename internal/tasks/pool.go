// Package tasks runs fire-and-forget side effects on a fixed set of workers
// fed by a bounded queue.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"

	"tg-exchange/internal/crash"
	"tg-exchange/internal/logger"
)

var taskCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_tasks",
	Help: "Number of background tasks, by outcome",
}, []string{"outcome"})

type task struct {
	name string
	fn   func(ctx context.Context)
}

// Pool is a worker pool. Submit never blocks: when the queue is full the task
// is dropped and logged.
type Pool struct {
	workers int
	queue   chan task

	mu     sync.RWMutex
	closed bool

	wg      conc.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	pending *atomic.Int64
}

func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		workers: workers,
		queue:   make(chan task, queueSize),
		pending: atomic.NewInt64(0),
	}
}

// Start launches the workers. Tasks get a context derived from ctx that is
// cancelled by Stop.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Go(p.work)
	}
	logger.Infof("Task pool started with %d workers", p.workers)
}

func (p *Pool) work() {
	for t := range p.queue {
		p.run(t)
		p.pending.Dec()
	}
}

func (p *Pool) run(t task) {
	defer crash.Recover("task-"+t.name, func(interface{}) {
		taskCount.WithLabelValues("panic").Inc()
	})
	t.fn(p.ctx)
	taskCount.WithLabelValues("done").Inc()
}

// Submit queues fn and reports whether it was accepted.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		taskCount.WithLabelValues("rejected").Inc()
		return false
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		p.pending.Inc()
		return true
	default:
		taskCount.WithLabelValues("dropped").Inc()
		logger.Warningf("Task queue full, dropping %s", name)
		return false
	}
}

// After submits fn once d has passed.
func (p *Pool) After(d time.Duration, name string, fn func(ctx context.Context)) {
	time.AfterFunc(d, func() { p.Submit(name, fn) })
}

// Pending is the number of queued and running tasks.
func (p *Pool) Pending() int64 {
	return p.pending.Load()
}

// Stop stops accepting tasks, lets the queued ones finish and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	logger.Infof("Task pool stopped")
}
