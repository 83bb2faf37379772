// Package scheduler provides cancellable per-incident timers and the periodic
// loop that drives the escalation sweep.  Timers are a latency optimization:
// the sweep remains the safety net, and a timer firing on an already-closed
// incident is harmless because evaluation re-reads status first.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
)

// Timers is a registry of pending callbacks keyed by incident.  A terminal
// incident transition cancels all of its timers synchronously.
type Timers struct {
	mu      sync.Mutex
	entries map[string][]*time.Timer
	log     logging.Logger
}

func NewTimers(log logging.Logger) *Timers {
	return &Timers{
		entries: make(map[string][]*time.Timer),
		log:     log.Named("timers"),
	}
}

// Schedule runs fn after delay unless the incident's timers are canceled
// first.  Multiple timers per incident are allowed (one per escalation rung).
func (t *Timers) Schedule(incidentID string, delay time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.remove(incidentID, timer)
		fn()
	})
	t.entries[incidentID] = append(t.entries[incidentID], timer)
}

// CancelIncident stops every pending timer for the incident.
func (t *Timers) CancelIncident(incidentID string) {
	t.mu.Lock()
	timers := t.entries[incidentID]
	delete(t.entries, incidentID)
	t.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	if len(timers) > 0 {
		t.log.Debug("Canceled escalation timers",
			logging.String("incident_id", incidentID),
			logging.Int("count", len(timers)))
	}
}

// Pending reports how many timers an incident still has.
func (t *Timers) Pending(incidentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries[incidentID])
}

func (t *Timers) remove(incidentID string, fired *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	timers := t.entries[incidentID]
	for i, timer := range timers {
		if timer == fired {
			t.entries[incidentID] = append(timers[:i], timers[i+1:]...)
			break
		}
	}
	if len(t.entries[incidentID]) == 0 {
		delete(t.entries, incidentID)
	}
}

// Loop runs fn at a fixed interval until the context is canceled.  Errors are
// logged and the loop keeps going; one bad sweep must not stop the next.
type Loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	log      logging.Logger
}

func NewLoop(name string, interval time.Duration, fn func(ctx context.Context) error, log logging.Logger) *Loop {
	return &Loop{name: name, interval: interval, fn: fn, log: log.Named(name)}
}

// Run blocks until ctx is done.  The first pass runs after one interval, not
// immediately, so a restarting worker does not double-fire.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("Loop started", logging.Duration("interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := l.fn(ctx); err != nil {
				l.log.Error("Loop pass failed", logging.Err(err))
			}
		}
	}
}
