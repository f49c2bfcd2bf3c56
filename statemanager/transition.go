package statemanager

import (
	"context"

	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/driver"
	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/storage"
)

// computeTransition looks up spec.md §4.1.1's transition table for a
// status-report-style change (setTaskStatus, tasksDeleted): given the
// task's current recorded state and the status a caller is reporting,
// it says whether the transition is accepted and which side effects
// fire. It never returns kill=true for entering KILLING -- that
// transition only ever originates from a caller-initiated kill
// request and is handled by KillTasks, not by a status report.
//
// The table's "if service OR not user-kill" conditions collapse here
// because ChangeState only ever represents status reports, never a
// user-kill request (see KillTasks) -- "not user-kill" is always
// true on this path, so RUNNING->KILLED always reschedules, exactly
// as spec.md §4.1.1 literally specifies.
func computeTransition(task sched.ScheduledTask, target sched.ScheduleStatus) (accepted, incrementFailures, reschedule, kill bool) {
	if task.Status.IsTerminal() {
		return false, false, false, false // I2
	}
	cfg := task.Assigned.Task
	switch {
	case task.Status == sched.ASSIGNED && target == sched.STARTING:
		return true, false, false, false
	case task.Status == sched.ASSIGNED && (target == sched.LOST || target == sched.KILLED):
		return true, false, true, false
	case task.Status == sched.STARTING && target == sched.RUNNING:
		return true, false, false, false
	case task.Status == sched.STARTING && target == sched.LOST:
		return true, false, true, false
	case task.Status == sched.RUNNING && target == sched.FINISHED:
		return true, false, cfg.IsService, false
	case task.Status == sched.RUNNING && target == sched.FAILED:
		underThreshold := task.FailureCount+1 < cfg.MaxTaskFailures
		return true, true, cfg.IsService || underThreshold, false
	case task.Status == sched.RUNNING && target == sched.LOST:
		return true, false, true, false
	case task.Status == sched.RUNNING && target == sched.KILLED:
		return true, false, true, false
	case task.Status == sched.KILLING && target == sched.KILLED:
		return true, false, false, false
	case (task.Status == sched.ASSIGNED || task.Status == sched.STARTING || task.Status == sched.RUNNING) && target == sched.UPDATING:
		return true, false, false, true
	case (task.Status == sched.ASSIGNED || task.Status == sched.STARTING || task.Status == sched.RUNNING) && target == sched.ROLLBACK:
		return true, false, false, true
	case task.Status == sched.UPDATING && target == sched.ROLLBACK:
		// aborting an in-flight update before its outgoing task has
		// reported back: no new kill to dispatch, the UPDATING entry
		// already fired one.
		return true, false, false, false
	case task.Status == sched.ROLLBACK && target == sched.UPDATING:
		return true, false, false, false
	case task.Status == sched.UPDATING && (target == sched.KILLED || target == sched.FINISHED):
		return true, false, true, false
	case task.Status == sched.ROLLBACK && (target == sched.KILLED || target == sched.FINISHED):
		return true, false, true, false
	case (task.Status == sched.ASSIGNED || task.Status == sched.STARTING || task.Status == sched.RUNNING) && target == sched.RESTARTING:
		return true, false, false, true
	case task.Status == sched.RESTARTING && (target == sched.FINISHED || target == sched.KILLED):
		return true, false, true, false
	default:
		return false, false, false, false
	}
}

// ChangeState applies the transition table to every task matching q,
// returning the number actually transitioned. Non-matching pairs and
// transitions out of a terminal state are silently dropped (spec.md
// §7): a dropped task is never an error.
func (m *Manager) ChangeState(ctx context.Context, q sched.Query, newStatus sched.ScheduleStatus, message string) (int, error) {
	defer m.stats.Latency(stats.StateManagerTxnLatency_ms).Time().Stop()
	var postCommit []workItem
	count := 0

	err := m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		tasks, err := txn.Fetch(q)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			ok, incFailures, reschedule, kill := computeTransition(task, newStatus)
			if !ok {
				if task.Status.IsTerminal() {
					m.stats.Counter(stats.StateManagerDroppedTerminalCounter).Inc(1)
				}
				continue
			}
			oldStatus := task.Status
			if incFailures {
				task.FailureCount++
			}
			task.Status = newStatus
			task.Events = append(task.Events, sched.TaskEvent{
				Timestamp:     m.clock.Now(),
				Status:        newStatus,
				Message:       message,
				SchedulerHost: m.hostname,
			})
			if err := txn.Insert(task); err != nil {
				return err
			}
			count++
			postCommit = append(postCommit, publishWork{change: driver.TaskStateChange{
				TaskID: task.TaskID, OldStatus: oldStatus, NewStatus: newStatus, Message: message,
			}})
			if kill {
				postCommit = append(postCommit, killWork{taskID: task.TaskID})
			}
			if reschedule {
				successor, err := m.reschedule(task, task.Assigned.Task)
				if err != nil {
					return err
				}
				if err := txn.Insert(successor); err != nil {
					return err
				}
				m.stats.Counter(stats.StateManagerRescheduledCounter).Inc(1)
				postCommit = append(postCommit, createTaskWork{taskID: successor.TaskID})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.stats.Counter(stats.StateManagerTransitionsCounter).Inc(int64(count))
	m.flush(postCommit)
	return count, nil
}

// reschedule builds the successor task for an outgoing task per I7:
// same JobKey and InstanceID, ancestorId set, failureCount carried
// forward, using cfg as the successor's TaskConfig (the outgoing
// task's own config, unless the caller has already swapped it -- see
// ChangeStateWithConfig).
func (m *Manager) reschedule(outgoing sched.ScheduledTask, cfg sched.TaskConfig) (sched.ScheduledTask, error) {
	taskID := m.genID(cfg)
	if len(taskID) > sched.MaxTaskIDLength {
		return sched.ScheduledTask{}, sched.NewInvalidConfigurationError("taskId", "generated task id exceeds MaxTaskIDLength")
	}
	return sched.ScheduledTask{
		TaskID:       taskID,
		Status:       sched.PENDING,
		FailureCount: outgoing.FailureCount,
		AncestorID:   outgoing.TaskID,
		Assigned:     sched.AssignedTask{TaskID: taskID, Task: cfg},
		Events: []sched.TaskEvent{{
			Timestamp:     m.clock.Now(),
			Status:        sched.PENDING,
			Message:       "rescheduled from " + outgoing.TaskID,
			SchedulerHost: m.hostname,
		}},
	}, nil
}

// ChangeStateWithConfig is ChangeState specialized for the transitions
// whose eventual reschedule must use a config the caller supplies
// rather than the outgoing task's own (ASSIGNED/STARTING/RUNNING->
// UPDATING with newConfig, ASSIGNED/STARTING/RUNNING->ROLLBACK with
// oldConfig, and the UPDATING<->
// ROLLBACK swap when a caller redirects an in-flight update before
// its outgoing task has resolved): the config swap happens
// immediately, on the outgoing task's own record, so that when it
// later reaches UPDATING->{KILLED,FINISHED} or
// ROLLBACK->{KILLED,FINISHED} the generic ChangeState reschedule path
// picks up the swapped config with no extra plumbing.
func (m *Manager) ChangeStateWithConfig(ctx context.Context, q sched.Query, newStatus sched.ScheduleStatus, cfg sched.TaskConfig, message string) (int, error) {
	defer m.stats.Latency(stats.StateManagerTxnLatency_ms).Time().Stop()
	var postCommit []workItem
	count := 0

	err := m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		tasks, err := txn.Fetch(q)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			ok, _, _, kill := computeTransition(task, newStatus)
			if !ok {
				continue
			}
			oldStatus := task.Status
			task.Status = newStatus
			task.Assigned.Task = cfg
			task.Events = append(task.Events, sched.TaskEvent{
				Timestamp:     m.clock.Now(),
				Status:        newStatus,
				Message:       message,
				SchedulerHost: m.hostname,
			})
			if err := txn.Insert(task); err != nil {
				return err
			}
			count++
			postCommit = append(postCommit, publishWork{change: driver.TaskStateChange{
				TaskID: task.TaskID, OldStatus: oldStatus, NewStatus: newStatus, Message: message,
			}})
			if kill {
				postCommit = append(postCommit, killWork{taskID: task.TaskID})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.flush(postCommit)
	return count, nil
}

// RewriteConfig overwrites an existing task's TaskConfig in place
// without changing its status or appending a taskEvent -- used by
// updateShards to rewrite a still-PENDING task to the new config
// (spec.md §4.2: "PENDING is re-written in place to newConfig and
// stays PENDING").
func (m *Manager) RewriteConfig(ctx context.Context, taskID string, cfg sched.TaskConfig) error {
	return m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		tasks, err := txn.Fetch(sched.ForTaskIDs(taskID))
		if err != nil {
			return err
		}
		if len(tasks) != 1 {
			return sched.NewScheduleException("rewriteConfig", "no such task: "+taskID)
		}
		task := tasks[0]
		task.Assigned.Task = cfg
		return txn.Insert(task)
	})
}

// KillTasks implements the FSM half of spec.md §4.2's killTasks:
// PENDING tasks matching q are deleted outright, active tasks are
// transitioned to KILLING (never rescheduled -- that only happens
// once KILLING resolves to a terminal status via a later status
// report), terminal tasks are left untouched. It returns the number
// of tasks affected.
func (m *Manager) KillTasks(ctx context.Context, q sched.Query, message string) (int, error) {
	defer m.stats.Latency(stats.StateManagerTxnLatency_ms).Time().Stop()
	var postCommit []workItem
	count := 0

	err := m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		tasks, err := txn.Fetch(q)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			switch {
			case task.Status == sched.PENDING:
				if err := txn.Delete(task.TaskID); err != nil {
					return err
				}
				count++
			case task.Status.IsActive():
				oldStatus := task.Status
				task.Status = sched.KILLING
				task.Events = append(task.Events, sched.TaskEvent{
					Timestamp:     m.clock.Now(),
					Status:        sched.KILLING,
					Message:       message,
					SchedulerHost: m.hostname,
				})
				if err := txn.Insert(task); err != nil {
					return err
				}
				count++
				postCommit = append(postCommit,
					publishWork{change: driver.TaskStateChange{TaskID: task.TaskID, OldStatus: oldStatus, NewStatus: sched.KILLING, Message: message}},
					killWork{taskID: task.TaskID},
				)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.flush(postCommit)
	return count, nil
}
