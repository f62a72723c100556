package executor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrShutdown = errors.New("executor: pool is shut down")

// Pool runs submitted tasks on worker goroutines, at most size at a time.
type Pool struct {
	log *zap.Logger
	sem *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	shutdown bool
	draining bool
	wg       sync.WaitGroup
}

func NewPool(log *zap.Logger, size int) *Pool {
	if size < 1 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		log:    log,
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules task and returns without waiting for a free worker. The
// task's context is canceled when the pool shuts down. Once Wait has been
// called, Submit fails with ErrShutdown.
func (p *Pool) Submit(task func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown || p.draining {
		return ErrShutdown
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.log.Debug("Dropping task, pool shut down before it started")
			return
		}
		defer p.sem.Release(1)

		p.run(task)
	}()
	return nil
}

func (p *Pool) run(task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Task panicked", zap.Any("panic", r))
		}
	}()
	task(p.ctx)
}

// Shutdown rejects new tasks and cancels the context of running ones. It does
// not wait; use Wait for that.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return
	}
	p.shutdown = true
	p.cancel()
}

// Wait stops accepting tasks and blocks until every submitted task has
// returned or ctx is done. Running tasks keep their context.
func (p *Pool) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
