// Package clock provides an injectable time source, grounded on the
// teacher's common/stats.StatsTime abstraction (same "wrap Now, allow
// a fixed test double" shape, narrowed to just what the state manager
// needs for task-event timestamps).
package clock

import "time"

// Clock abstracts time.Now so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// New returns a Clock backed by the stdlib time package.
func New() Clock { return realClock{} }

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock { return fixedClock{t} }

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }
