// Package reclaim releases externally displayed handles that were never
// reported closed. Each scheduled release is a plain ReleaseByID call, so a
// reclaim that fires after the handle is already gone does nothing.
package reclaim

import (
	"context"
	"sync"
	"time"

	"inventory_reports/internal/resources"
	"inventory_reports/platform/logger"
)

// Releaser is the slice of resources.Manager a scheduler needs.
type Releaser interface {
	ReleaseByID(ctx context.Context, id, reason string) error
}

// Scheduler arranges a release of handleID after a delay.
type Scheduler interface {
	Schedule(ctx context.Context, handleID string, after time.Duration) error
	Cancel(ctx context.Context, handleID string)
	Close() error
}

// TimerScheduler uses in-process timers. Pending reclaims are lost when the
// process exits, which is fine because the handles die with it.
type TimerScheduler struct {
	releaser Releaser
	log      *logger.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewTimerScheduler creates a timer based scheduler.
func NewTimerScheduler(releaser Releaser, log *logger.Logger) *TimerScheduler {
	return &TimerScheduler{
		releaser: releaser,
		log:      log,
		timers:   make(map[string]*time.Timer),
	}
}

func (s *TimerScheduler) Schedule(_ context.Context, handleID string, after time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if t, ok := s.timers[handleID]; ok {
		t.Stop()
	}
	s.timers[handleID] = time.AfterFunc(after, func() { s.fire(handleID) })
	return nil
}

func (s *TimerScheduler) fire(handleID string) {
	s.mu.Lock()
	delete(s.timers, handleID)
	s.mu.Unlock()

	if err := s.releaser.ReleaseByID(context.Background(), handleID, resources.ReasonReclaimed); err != nil {
		s.log.Warn("reclaim failed", "handle_id", handleID, "error", err)
	}
}

func (s *TimerScheduler) Cancel(_ context.Context, handleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[handleID]; ok {
		t.Stop()
		delete(s.timers, handleID)
	}
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops every pending timer.
func (s *TimerScheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.closed = true
	return nil
}
