package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/photomagic/internal/logging"
)

var ErrPoolClosed = errors.New("dispatch: pool closed")

// Pool runs jobs on at most n goroutines at a time. A job runs under a
// context detached from the caller's cancellation, so finishing a request
// never aborts its job. Panics in the handler are recovered and logged.
type Pool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	handler Handler
	logger  logging.Logger
}

func NewPool(workers int, handler Handler, logger logging.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		sem:     make(chan struct{}, workers),
		handler: handler,
		logger:  logger,
	}
}

// Dispatch queues job and returns at once.
func (p *Pool) Dispatch(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		p.run(context.WithoutCancel(ctx), job)
	}()
	return nil
}

// Submit waits for a free worker, then starts job and returns. It gives
// consumers backpressure that Dispatch does not.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.run(context.WithoutCancel(ctx), job)
	}()
	return nil
}

func (p *Pool) run(ctx context.Context, job Job) {
	if job.TraceID != "" && logging.TraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, job.TraceID)
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(ctx, "job panicked", "task_id", job.TaskID, "panic", fmt.Sprint(r))
		}
	}()

	if err := p.handler(ctx, job); err != nil {
		p.logger.Error(ctx, "job failed", "task_id", job.TaskID, "error", err)
	}
}

// Close stops accepting jobs and waits for running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Wait blocks until all accepted jobs have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
