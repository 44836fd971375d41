// Package scheduler runs keyed, cancellable delayed tasks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type TaskFunc func(ctx context.Context) error

type task struct {
	timer *time.Timer
	seq   uint64
}

// Scheduler holds at most one pending task per key. Scheduling a key again replaces
// the pending task; cancelling is safe at any time, including after the task ran.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	seq     uint64
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeout time.Duration
	onError func(key string, err error)
	logger  zerolog.Logger
}

func New(logger zerolog.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:   make(map[string]*task),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
	}
}

// OnError registers a hook called after a task fails. Failed tasks are not retried.
func (s *Scheduler) OnError(fn func(key string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

func (s *Scheduler) Schedule(key string, delay time.Duration, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Debug().Str("key", key).Msg("scheduler stopped, dropping task")
		return
	}

	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}

	s.seq++
	t := &task{seq: s.seq}
	t.timer = time.AfterFunc(delay, func() { s.run(key, t, fn) })
	s.tasks[key] = t

	s.logger.Debug().Str("key", key).Dur("delay", delay).Msg("task scheduled")
}

func (s *Scheduler) run(key string, t *task, fn TaskFunc) {
	s.mu.Lock()
	cur, ok := s.tasks[key]
	if !ok || cur.seq != t.seq || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.wg.Add(1)
	onError := s.onError
	s.mu.Unlock()

	defer s.wg.Done()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := fn(ctx); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("scheduled task failed")
		if onError != nil {
			onError(key, err)
		}
		return
	}
	s.logger.Debug().Str("key", key).Msg("scheduled task completed")
}

// Cancel drops the pending task for key. It reports whether a pending task was removed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tasks)
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	return n
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels pending tasks and waits for running ones, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
