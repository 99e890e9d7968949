package service

import (
	"context"
	"log/slog"
	"sync"
)

// workerPool runs generation jobs on a fixed number of goroutines.
//
// Draft creation must return immediately — the model call takes seconds —
// so the handler path only enqueues. The bounded worker count keeps a burst
// of meal logging from opening dozens of concurrent model requests.
type workerPool struct {
	jobs      chan func(context.Context)
	logger    *slog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// newWorkerPool creates a pool with the given queue capacity.
func newWorkerPool(queueSize int, logger *slog.Logger) *workerPool {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &workerPool{
		jobs:   make(chan func(context.Context), queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches n workers. Calling Start twice is a no-op.
func (p *workerPool) Start(n int) {
	p.startOnce.Do(func() {
		if n <= 0 {
			n = 1
		}
		p.logger.Info("starting generation worker pool", slog.Int("workers", n))
		for i := 0; i < n; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop drains in-flight jobs and waits for the workers to exit.
// Queued-but-unstarted jobs are dropped; the drafts they belonged to stay
// pending server-side and generation resumes is not attempted — the user
// recovers by discarding, as with any stuck draft.
func (p *workerPool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down generation worker pool")
		close(p.done)
		p.wg.Wait()
	})
}

// Enqueue submits a job. It blocks if the queue is full, which applies
// backpressure to the create-draft endpoint rather than growing unbounded.
func (p *workerPool) Enqueue(job func(context.Context)) {
	select {
	case p.jobs <- job:
	case <-p.done:
		// Shutting down; drop the job.
	}
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	// Jobs get a background context: generation must outlive the HTTP
	// request that enqueued it.
	ctx := context.Background()

	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			job(ctx)
		}
	}
}
