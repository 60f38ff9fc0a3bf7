package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultCapacity = 64
	DefaultWorkers  = 4
)

// Task is one named unit of background work. Run receives the runner's root
// context, not the request context that scheduled it: the caller has already
// responded by the time the task runs.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Runner is an in-process, fire-and-forget task substrate: a bounded channel
// consumed by a worker pool. Nothing is persisted and nothing is retried; a
// process crash loses whatever was in flight. Scheduled work cannot be
// cancelled by the caller.
type Runner struct {
	log     *slog.Logger
	ch      chan Task
	workers int

	mu       sync.Mutex
	started  bool
	stopping bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewRunner(logger *slog.Logger, capacity, workers int) *Runner {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		log:     logger,
		ch:      make(chan Task, capacity),
		workers: workers,
	}
}

// Start launches the worker pool. The given context is the root context every
// task runs under.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runner already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.started = true
	return nil
}

func (r *Runner) worker(ctx context.Context, idx int) {
	defer r.wg.Done()
	log := r.log.With("worker", idx)
	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopping")
			return
		case t, ok := <-r.ch:
			if !ok {
				return
			}
			start := time.Now()
			log.Info("task started", "task", t.Name)
			t.Run(ctx)
			log.Info("task finished", "task", t.Name, "duration", time.Since(start))
		}
	}
}

// Schedule enqueues a task without blocking. It fails when the runner is not
// running or the queue is full; the caller decides what that means.
func (r *Runner) Schedule(t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopping {
		return errors.New("runner not running")
	}
	select {
	case r.ch <- t:
		return nil
	default:
		return errors.New("task queue is full")
	}
}

// Shutdown stops accepting tasks and waits up to grace for workers to finish
// what they picked up.
func (r *Runner) Shutdown(grace time.Duration) {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopping = true
		if r.cancel != nil {
			r.cancel()
		}
		close(r.ch)
		r.mu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			r.wg.Wait()
		}()
		if grace <= 0 {
			<-done
			return
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			r.log.Warn("shutdown grace elapsed; workers may still be running")
		}
	})
}
