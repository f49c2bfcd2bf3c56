package statemanager

import (
	"github.com/mgargenta/incubator-aurora/driver"
)

// workItem is the closed set of post-commit side effects a
// transition can emit (spec.md §4.1.2 step 5), grounded on the
// teacher's action/rpc split in sched/scheduler/action.go. Steps 1-4
// (increment failures, persist the new status, reschedule, delete)
// mutate the store directly inside ChangeState/KillTasks's own
// transaction, since each is a single txn.Insert/txn.Delete call with
// nothing to dispatch through; only the steps that talk to Driver or
// EventSink are buffered here for the post-commit flush.
type workItem interface {
	isWorkItem()
}

// killWork is a post-commit Driver.KillTask call.
type killWork struct {
	taskID string
}

// createTaskWork is a post-commit hook fired for freshly inserted
// tasks -- InsertTasks has no external system to notify today, but
// the hook point exists so a future Driver.notifyCreated can be
// wired in without touching the transition table.
type createTaskWork struct {
	taskID string
}

func (killWork) isWorkItem()       {}
func (createTaskWork) isWorkItem() {}

// publishWork is synthesized once per accepted transition and
// buffered alongside killWork/createTaskWork for post-commit flush
// (spec.md §4.1.2 step 5: "EventSink receives one pub-sub event per
// transition").
type publishWork struct {
	change driver.TaskStateChange
}

func (publishWork) isWorkItem() {}
