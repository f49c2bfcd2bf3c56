// Package driver defines the one-way command sink and state-change
// publisher the state manager talks to strictly after a store
// transaction commits, plus small reference implementations used by
// the demo binary and by tests. Grounded on the teacher's
// coordinator.go dispatchRpc/logSagaMsg split: post-commit work is a
// value describing what happened, dispatched to a single consumer
// that does not participate in the transaction that produced it.
package driver

import "github.com/mgargenta/incubator-aurora/sched"

// Driver is a fire-and-forget command sink for external effects the
// state manager cannot itself guarantee (killing a task on whatever
// node it landed on). Implementations must tolerate repeated calls
// with the same taskID.
type Driver interface {
	KillTask(taskID string)
}

// TaskStateChange is published once per accepted transition,
// strictly after the transaction that produced it commits.
type TaskStateChange struct {
	TaskID    string
	OldStatus sched.ScheduleStatus
	NewStatus sched.ScheduleStatus
	Message   string
}

// EventSink receives one TaskStateChange per accepted transition.
type EventSink interface {
	Publish(change TaskStateChange)
}
