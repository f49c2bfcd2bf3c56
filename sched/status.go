package sched

// ScheduleStatus is the lifecycle status of a ScheduledTask.
//
// Grounded on the Status enum in the teacher's sched/definitions.go
// (iota constants + a parallel String() lookup table), generalized
// from Scoot's five-state job/task status to Aurora's twelve-state
// per-task FSM (spec.md §3).
type ScheduleStatus int

const (
	PENDING ScheduleStatus = iota
	ASSIGNED
	STARTING
	RUNNING
	UPDATING
	ROLLBACK
	RESTARTING
	KILLING
	FINISHED
	FAILED
	KILLED
	LOST
)

var statusNames = [...]string{
	"PENDING",
	"ASSIGNED",
	"STARTING",
	"RUNNING",
	"UPDATING",
	"ROLLBACK",
	"RESTARTING",
	"KILLING",
	"FINISHED",
	"FAILED",
	"KILLED",
	"LOST",
}

func (s ScheduleStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// terminalStatuses is the absorbing set from spec.md §3: once a task
// reaches one of these, no further transition is recorded (I2).
var terminalStatuses = map[ScheduleStatus]bool{
	FINISHED: true,
	FAILED:   true,
	KILLED:   true,
	LOST:     true,
}

// IsTerminal reports whether s is in the terminal set {FINISHED, FAILED,
// KILLED, LOST}.
func (s ScheduleStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsActive is the complement of IsTerminal: an "active" task per the
// glossary is one whose status is not terminal.
func (s ScheduleStatus) IsActive() bool {
	return !s.IsTerminal()
}
