package knn

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	pkgerrors "knnvote/pkg/errors"
)

// WorkerPool is a fixed set of long-lived goroutines that run submitted
// tasks. It is created once per classifier and reused by every prediction.
type WorkerPool struct {
	size  int
	tasks chan func()
	wg    sync.WaitGroup
	log   *zap.SugaredLogger

	mu     sync.RWMutex // guards closed against concurrent sends
	closed bool
}

// NewWorkerPool starts size workers. A size of 0 means GOMAXPROCS.
func NewWorkerPool(size int, log *zap.SugaredLogger) (*WorkerPool, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", pkgerrors.ErrInvalidWorkers, size)
	}
	if size == 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &WorkerPool{
		size:  size,
		tasks: make(chan func(), size*2),
		log:   log,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p, nil
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(id, task)
	}
}

// run keeps the worker alive if a task panics. Tasks that need to report
// failure must recover themselves.
func (p *WorkerPool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("task panicked", "worker", id, "panic", r)
		}
	}()
	task()
}

func (p *WorkerPool) Size() int {
	return p.size
}

// Submit enqueues task, blocking while the queue is full. It fails with
// ErrInvalidState after Close and with the context error if ctx ends first.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return pkgerrors.ErrInvalidState
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, lets queued ones finish and waits for the
// workers to exit. Calling it again is a no-op.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
