package workpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
)

var ErrStopped = errors.New("worker pool stopped")

type Config struct {
	Name      string
	Workers   int
	QueueSize int
}

// Observer receives pool lifecycle events. Implementations must be safe for concurrent use.
type Observer interface {
	JobRejected(pool, job string)
	JobStarted(pool, job string, waited time.Duration)
	JobFinished(pool, job string, took time.Duration, err error)
}

type task struct {
	name     string
	run      func(context.Context) error
	enqueued time.Time
}

// Pool runs named jobs on a fixed number of workers fed by a bounded queue.
// Submit never blocks: a saturated queue is reported to the caller instead.
type Pool struct {
	name     string
	workers  int
	observer Observer

	mu      sync.RWMutex
	tasks   chan task
	closed  bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, observer Observer) *Pool {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Pool{
		name:     cfg.Name,
		workers:  cfg.Workers,
		observer: observer,
		tasks:    make(chan task, cfg.QueueSize),
	}
}

// Start launches the workers. Jobs see a context derived from ctx that is cancelled
// only when Stop gives up waiting.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
	p.started = true
	slog.Info("worker_pool_started", "pool", p.name, "workers", p.workers, "queue_size", cap(p.tasks))
}

func (p *Pool) Submit(name string, job func(context.Context) error) error {
	if job == nil {
		return fmt.Errorf("workpool: job %q is nil", name)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.WrapError(domain.ErrTemporary, "submit "+name, ErrStopped)
	}

	select {
	case p.tasks <- task{name: name, run: job, enqueued: time.Now()}:
		return nil
	default:
		p.observer.JobRejected(p.name, name)
		return domain.WrapError(domain.ErrQueueFull, "submit "+name, fmt.Errorf("pool %s holds %d queued jobs", p.name, cap(p.tasks)))
	}
}

// Queued reports the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	return len(p.tasks)
}

// Stop closes intake and lets workers drain the queue. When ctx expires first, the job context
// is cancelled and Stop waits until every running and queued job has returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		slog.Info("worker_pool_stopped", "pool", p.name)
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		slog.Warn("worker_pool_stop_deadline", "pool", p.name, "error", ctx.Err())
		return fmt.Errorf("drain pool %s: %w", p.name, ctx.Err())
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	// Jobs still queued after a Stop deadline run with a cancelled context so they can record their own failure.
	for t := range p.tasks {
		p.run(id, t)
	}
}

func (p *Pool) run(workerID int, t task) {
	p.observer.JobStarted(p.name, t.name, time.Since(t.enqueued))
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panic: %v", r)
			}
		}()
		return t.run(p.ctx)
	}()

	p.observer.JobFinished(p.name, t.name, time.Since(start), err)
	if err != nil {
		slog.Error("worker_job_failed", "pool", p.name, "worker_id", workerID, "job", t.name, "error", err)
	}
}

type nopObserver struct{}

func (nopObserver) JobRejected(string, string)                       {}
func (nopObserver) JobStarted(string, string, time.Duration)         {}
func (nopObserver) JobFinished(string, string, time.Duration, error) {}
