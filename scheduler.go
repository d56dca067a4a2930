package shakeout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunFunc executes one full suite pass.
type RunFunc func(ctx context.Context) (*SuiteResult, error)

// Scheduler drives suite passes: a single pass when the interval is
// zero, otherwise an immediate pass followed by one per tick. The most
// recent result is retained so the health endpoint can report on it.
type Scheduler struct {
	interval time.Duration
	run      RunFunc
	log      log.Logger

	mu      sync.Mutex
	last    *SuiteResult
	lastErr error
	active  bool

	stop     chan struct{}
	loopDone chan struct{}
}

// NewScheduler creates a scheduler around run. An interval of zero
// means run-once.
func NewScheduler(interval time.Duration, run RunFunc, logger log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Root()
	}
	return &Scheduler{interval: interval, run: run, log: logger}
}

// RunOnce reports whether the scheduler performs a single pass.
func (s *Scheduler) RunOnce() bool { return s.interval == 0 }

// Start performs the first pass synchronously. With a zero interval
// that pass is the whole job and its error is returned. In continuous
// mode a failed first pass is recorded and the tick loop starts
// anyway: a transient runner problem must not kill a long-running
// watch.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.run == nil {
		return errors.New("scheduler has no run function")
	}

	result, err := s.run(ctx)
	s.record(result, err)
	if s.RunOnce() {
		return err
	}
	if err != nil {
		s.log.Error("Initial suite pass failed, continuing on interval", "error", err)
	}

	s.mu.Lock()
	s.active = true
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("Scheduling suite passes", "interval", s.interval)
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.log.Info("Starting scheduled suite pass")
			result, err := s.run(ctx)
			s.record(result, err)
			if err != nil {
				s.log.Error("Scheduled suite pass failed", "error", err)
			}
		case <-s.stop:
			s.log.Debug("Stop requested, leaving scheduler loop")
			return
		case <-ctx.Done():
			s.log.Debug("Context canceled, leaving scheduler loop")
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) record(result *SuiteResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result != nil {
		s.last = result
	}
	s.lastErr = err
}

// LastResult returns the most recent completed pass and its error.
// Both are nil before the first pass finishes.
func (s *Scheduler) LastResult() (*SuiteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

// Stop ends the tick loop. Safe to call repeatedly; a pass already in
// flight finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.stop)
}

// Stopped reports whether the scheduler is no longer scheduling passes.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.active
}

// WaitForShutdown blocks until the tick loop has exited or ctx expires.
func (s *Scheduler) WaitForShutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for scheduler loop to exit", "error", ctx.Err())
		return ctx.Err()
	}
}
