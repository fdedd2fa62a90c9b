package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/arolang/aro/internal/ctxlog"
)

// PoolOption configures a Pool at construction time.
type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent workers. A value <= 0 is
// normalized to runtime.NumCPU().
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		p.workers = n
	}
}

// Pool is the shared worker pool that runs statement tasks from every live
// execution.
type Pool struct {
	workers int
	tasks   chan func()
	free    atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  atomic.Bool
}

// NewPool creates a pool; Start must be called before executions submit
// work.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	// At most one queued task per reserved worker, so sends never block.
	p.tasks = make(chan func(), p.workers)
	return p
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", p.workers)
	p.free.Store(int64(p.workers))
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func(workerID int) {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
				p.free.Add(1)
			}
		}(i)
	}
}

// reserve claims a free worker for one task.
func (p *Pool) reserve() bool {
	for {
		n := p.free.Load()
		if n <= 0 {
			return false
		}
		if p.free.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Submit runs a task. Statement tasks block inside the pool (awaiting
// handles and handler waits), so a task is queued only when a worker is
// reserved for it; with every worker busy or the pool closed, the task runs
// on its own goroutine instead. A statement sitting in the queue behind a
// full complement of blocked workers would deadlock the execution.
func (p *Pool) Submit(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() || !p.reserve() {
		go task()
		return
	}
	p.tasks <- task
}

// Close stops accepting tasks and waits for the workers to drain.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed.Store(true)
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
