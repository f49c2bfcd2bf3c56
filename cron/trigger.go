package cron

import (
	"time"

	"github.com/gorhill/cronexpr"
)

// Handle is the opaque token Trigger.Schedule returns; passing it to
// Trigger.Deschedule stops the goroutine backing that registration.
type Handle interface{}

// Trigger is the CronTrigger contract (spec.md §6): validate an
// expression, schedule a callback against it, and later stop it.
// Registry is the only caller; a fake Trigger is how the registry
// tests fire cron callbacks deterministically without waiting on a
// real clock.
type Trigger interface {
	IsValidSchedule(expr string) bool
	Schedule(expr string, callback func()) (Handle, error)
	Deschedule(handle Handle)
}

// exprTrigger is the reference Trigger, backed by
// github.com/gorhill/cronexpr. Each Schedule call spawns one
// goroutine that owns its own next-fire-time state and a stop
// channel -- grounded on the single-goroutine-per-resource style in
// the teacher's sched/queue/memory/simple.go (a private loop
// selecting over a timer and a stop signal, no state shared outside
// the goroutine except through channels).
type exprTrigger struct{}

// NewTrigger returns the reference cronexpr-backed Trigger.
func NewTrigger() Trigger {
	return exprTrigger{}
}

func (exprTrigger) IsValidSchedule(expr string) bool {
	_, err := cronexpr.Parse(expr)
	return err == nil
}

func (exprTrigger) Schedule(expr string, callback func()) (Handle, error) {
	e, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	go runSchedule(e, callback, stop)
	return stop, nil
}

func (exprTrigger) Deschedule(handle Handle) {
	if stop, ok := handle.(chan struct{}); ok {
		close(stop)
	}
}

// runSchedule is the body of one job's goroutine: sleep until the
// next occurrence, fire, repeat, until stop is closed. cronexpr.Next
// returning the zero Time means the expression has no further
// occurrences, which only happens when the expression carries an
// explicit year field whose years have all passed -- treated as
// "nothing left to do" rather than a busy loop.
func runSchedule(expr *cronexpr.Expression, callback func(), stop chan struct{}) {
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			callback()
		case <-stop:
			timer.Stop()
			return
		}
	}
}
