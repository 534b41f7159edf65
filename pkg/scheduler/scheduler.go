// Package scheduler resumes workflow branches suspended by delay nodes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrNotStarted = errors.New("scheduler not started")
	ErrClosed     = errors.New("scheduler closed")
)

// Continuation identifies the node a suspended branch resumes at.
type Continuation struct {
	WorkflowID string    `json:"workflowId"`
	LeadID     string    `json:"leadId"`
	NodeID     string    `json:"nodeId"`
	DueAt      time.Time `json:"dueAt"`
}

// Handler runs a continuation once it is due.
type Handler func(ctx context.Context, continuation Continuation)

// DelayScheduler fires each scheduled continuation once, after its delay.
type DelayScheduler interface {
	// Start registers the handler due continuations are delivered to.
	Start(ctx context.Context, handler Handler) error
	Schedule(ctx context.Context, delay time.Duration, continuation Continuation) error
	Close(ctx context.Context) error
}

// TimerScheduler keeps pending continuations in process timers.
// Pending continuations are lost when the process stops.
type TimerScheduler struct {
	logger *slog.Logger
	clock  clockwork.Clock

	mu      sync.Mutex
	handler Handler
	timers  map[clockwork.Timer]struct{}
	closed  bool
	running sync.WaitGroup
}

func NewTimerScheduler(logger *slog.Logger, clock clockwork.Clock) *TimerScheduler {
	return &TimerScheduler{
		logger: logger.With("module", "timer_scheduler"),
		clock:  clock,
		timers: make(map[clockwork.Timer]struct{}),
	}
}

func (s *TimerScheduler) Start(_ context.Context, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.handler = handler

	return nil
}

func (s *TimerScheduler) Schedule(ctx context.Context, delay time.Duration, continuation Continuation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.handler == nil {
		return ErrNotStarted
	}

	if continuation.DueAt.IsZero() {
		continuation.DueAt = s.clock.Now().Add(delay)
	}

	handler := s.handler

	var timer clockwork.Timer

	timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)

		if s.closed {
			s.mu.Unlock()

			return
		}

		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()

		handler(context.WithoutCancel(ctx), continuation)
	})
	s.timers[timer] = struct{}{}

	s.logger.DebugContext(ctx, "continuation scheduled",
		"workflow_id", continuation.WorkflowID,
		"lead_id", continuation.LeadID,
		"node_id", continuation.NodeID,
		"delay", delay)

	return nil
}

// Pending returns the number of continuations waiting for their timer.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

// Close drops every pending continuation and waits for running ones.
func (s *TimerScheduler) Close(ctx context.Context) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true

	dropped := len(s.timers)
	for timer := range s.timers {
		timer.Stop()
	}

	s.timers = make(map[clockwork.Timer]struct{})
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.WarnContext(ctx, "pending continuations dropped", "count", dropped)
	}

	s.running.Wait()

	return nil
}
