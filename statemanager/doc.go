// Package statemanager owns the per-task finite state machine and the
// transactional glue between it and the task store: every mutation a
// caller wants to make to a ScheduledTask funnels through Manager
// inside one storage.MutableStore transaction. A rescheduled
// successor is inserted inside that same transaction; the external
// side effects a transition implies (killing a task, publishing a
// state change) are dispatched only after it commits.
package statemanager
