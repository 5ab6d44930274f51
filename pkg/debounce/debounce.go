// Package debounce schedules cancellable delayed tasks keyed by string. Scheduling
// a task for a key cancels any unexpired task for the same key, so only the last
// task in a burst runs.
package debounce

import (
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/grove/pkg/logger"
)

// DefaultWindow is the delay used when Config.Window is zero.
const DefaultWindow = time.Second

// Config is the configuration options for a Scheduler.
type Config struct {
	// Window is the delay between the last Schedule call for a key and the run.
	Window time.Duration

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Scheduler runs at most one pending task per key.
type Scheduler struct {
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*entry
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
}

type entry struct {
	timer *time.Timer
	seq   uint64
}

// New creates a Scheduler.
func New(c Config) *Scheduler {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Scheduler{
		window:  c.Window,
		logger:  c.Logger,
		pending: make(map[string]*entry),
	}
}

// Window returns the configured delay.
func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Schedule arranges for fn to run after the window unless another Schedule or
// Cancel for key happens first. It reports false once the scheduler is stopped.
func (s *Scheduler) Schedule(key string, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
		s.logger.Debug("debounce window restarted", "key", key)
	}

	s.seq++
	e := &entry{seq: s.seq}
	e.timer = time.AfterFunc(s.window, func() {
		s.fire(key, e.seq, fn)
	})
	s.pending[key] = e

	return true
}

// fire runs fn only if the entry that armed it is still the current one for
// key. A timer whose Stop lost the race against expiry is filtered here.
func (s *Scheduler) fire(key string, seq uint64, fn func()) {
	s.mu.Lock()
	cur, ok := s.pending[key]
	if !ok || cur.seq != seq || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	fn()
}

// Cancel drops the pending task for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending reports whether a task is waiting for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Stop cancels every pending task and waits for running ones to return.
// Further Schedule calls are refused.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
