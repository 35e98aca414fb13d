package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler manages cancellable periodic tasks keyed by subscription id.
// Each task runs on its own goroutine, so one subscription's timer can never
// block another's. Built over an injectable Clock.
type Scheduler struct {
	clock  Clock
	logger *zap.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	update chan time.Duration
	stop   chan struct{}
}

// NewScheduler creates a scheduler over the given clock.
func NewScheduler(clock Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

// Schedule registers fn to run every interval under the given id, replacing
// any existing task with that id. fn must return promptly; long work belongs
// on the worker pool.
func (s *Scheduler) Schedule(id string, interval time.Duration, fn func()) {
	t := &task{
		update: make(chan time.Duration, 1),
		stop:   make(chan struct{}),
	}

	s.mu.Lock()
	if old, ok := s.tasks[id]; ok {
		close(old.stop)
	}
	s.tasks[id] = t
	s.mu.Unlock()

	go s.run(t, interval, fn)
}

// Reschedule changes the task's interval. The change applies from now: the
// pending tick is abandoned and the next one fires a full new interval
// later. Returns false if no task exists under the id.
func (s *Scheduler) Reschedule(id string, interval time.Duration) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case t.update <- interval:
	case <-t.stop:
	}
	return true
}

// Cancel stops and removes the task. No tick fires after Cancel returns.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if ok {
		close(t.stop)
	}
}

// CancelAll stops every task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*task)
	s.mu.Unlock()
	for _, t := range tasks {
		close(t.stop)
	}
}

func (s *Scheduler) run(t *task, interval time.Duration, fn func()) {
	timer := s.clock.NewTimer(interval)
	for {
		select {
		case <-timer.C():
			fn()
			timer = s.clock.NewTimer(interval)
		case interval = <-t.update:
			timer.Stop()
			timer = s.clock.NewTimer(interval)
		case <-t.stop:
			timer.Stop()
			return
		}
	}
}
