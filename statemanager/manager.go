package statemanager

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mgargenta/incubator-aurora/async"
	"github.com/mgargenta/incubator-aurora/clock"
	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/driver"
	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/storage"
)

// StateManager is the contract the scheduler core depends on. Manager
// is the only implementation; the interface exists so scheduler tests
// can substitute a fake.
type StateManager interface {
	InsertTasks(ctx context.Context, configs []sched.TaskConfig) ([]sched.ScheduledTask, error)
	AssignTask(ctx context.Context, taskID, slaveHost, slaveID string, ports []int32) (sched.AssignedTask, error)
	ChangeState(ctx context.Context, q sched.Query, newStatus sched.ScheduleStatus, message string) (int, error)
	DeleteTasks(ctx context.Context, taskIDs []string) error
	FetchTasks(ctx context.Context, q sched.Query) ([]sched.ScheduledTask, error)
}

// Manager owns the per-task FSM (spec.md §4.1) against a
// storage.MutableStore. It is constructed with explicit callback-free
// wiring -- no back-pointer to the scheduler core -- per §9's
// redesign guidance.
type Manager struct {
	store    storage.MutableStore
	driver   driver.Driver
	sink     driver.EventSink
	clock    clock.Clock
	genID    TaskIDGenerator
	hostname string
	stats    stats.StatsReceiver
}

// New constructs a Manager. genID and clk may be nil, in which case
// DefaultTaskIDGenerator and clock.New() are used.
func New(store storage.MutableStore, drv driver.Driver, sink driver.EventSink, clk clock.Clock, genID TaskIDGenerator, hostname string, statsReceiver stats.StatsReceiver) *Manager {
	if genID == nil {
		genID = DefaultTaskIDGenerator
	}
	if clk == nil {
		clk = clock.New()
	}
	if statsReceiver == nil {
		statsReceiver = stats.NilStatsReceiver()
	}
	return &Manager{
		store:    store,
		driver:   drv,
		sink:     sink,
		clock:    clk,
		genID:    genID,
		hostname: hostname,
		stats:    statsReceiver,
	}
}

// InsertTasks materializes one PENDING ScheduledTask per config,
// generating and length-checking a taskId for each (I6).
func (m *Manager) InsertTasks(ctx context.Context, configs []sched.TaskConfig) ([]sched.ScheduledTask, error) {
	inserted := make([]sched.ScheduledTask, 0, len(configs))
	var postCommit []workItem

	err := m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		for _, cfg := range configs {
			taskID := m.genID(cfg)
			if len(taskID) > sched.MaxTaskIDLength {
				return sched.NewInvalidConfigurationError("taskId", fmt.Sprintf("generated id %q exceeds MaxTaskIDLength", taskID))
			}
			task := sched.ScheduledTask{
				TaskID: taskID,
				Status: sched.PENDING,
				Assigned: sched.AssignedTask{
					TaskID: taskID,
					Task:   cfg,
				},
				Events: []sched.TaskEvent{{
					Timestamp:     m.clock.Now(),
					Status:        sched.PENDING,
					SchedulerHost: m.hostname,
				}},
			}
			if err := txn.Insert(task); err != nil {
				return err
			}
			inserted = append(inserted, task)
			postCommit = append(postCommit,
				createTaskWork{taskID: taskID},
				publishWork{change: driver.TaskStateChange{TaskID: taskID, OldStatus: sched.PENDING, NewStatus: sched.PENDING}},
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.stats.Counter(stats.StateManagerTasksInsertedCounter).Inc(int64(len(inserted)))
	m.flush(postCommit)
	return inserted, nil
}

// AssignTask transitions a PENDING task to ASSIGNED, pairing each
// requested port name with a distinct value from ports.
func (m *Manager) AssignTask(ctx context.Context, taskID, slaveHost, slaveID string, ports []int32) (sched.AssignedTask, error) {
	var assigned sched.AssignedTask
	var postCommit []workItem

	err := m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		tasks, err := txn.Fetch(sched.ForTaskIDs(taskID))
		if err != nil {
			return err
		}
		if len(tasks) != 1 {
			return sched.NewScheduleException("assignTask", "no such task: "+taskID)
		}
		task := tasks[0]
		if task.Status != sched.PENDING {
			return sched.NewScheduleException("assignTask", "task is not PENDING: "+taskID)
		}
		cfg := task.Assigned.Task
		if len(ports) < len(cfg.RequestedPorts) {
			return sched.NewScheduleException("assignTask", "not enough ports offered to satisfy requestedPorts")
		}
		portMap := make(map[string]int32, len(cfg.RequestedPorts))
		i := 0
		for name := range cfg.RequestedPorts {
			portMap[name] = ports[i]
			i++
		}
		task.Assigned = sched.AssignedTask{
			TaskID:        taskID,
			SlaveID:       slaveID,
			SlaveHost:     slaveHost,
			AssignedPorts: portMap,
			Task:          cfg,
		}
		task.Status = sched.ASSIGNED
		task.Events = append(task.Events, sched.TaskEvent{
			Timestamp:     m.clock.Now(),
			Status:        sched.ASSIGNED,
			SchedulerHost: m.hostname,
		})
		if err := txn.Insert(task); err != nil {
			return err
		}
		assigned = task.Assigned
		postCommit = append(postCommit, publishWork{change: driver.TaskStateChange{TaskID: taskID, OldStatus: sched.PENDING, NewStatus: sched.ASSIGNED}})
		return nil
	})
	if err != nil {
		return sched.AssignedTask{}, err
	}
	m.flush(postCommit)
	return assigned, nil
}

// DeleteTasks unconditionally removes the named tasks.
func (m *Manager) DeleteTasks(ctx context.Context, taskIDs []string) error {
	return m.store.Mutate(func(txn storage.MutableStoreTxn) error {
		for _, id := range taskIDs {
			if err := txn.Delete(id); err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchTasks is a snapshot read filtered by q.
func (m *Manager) FetchTasks(ctx context.Context, q sched.Query) ([]sched.ScheduledTask, error) {
	return m.store.Fetch(q)
}

// flush dispatches buffered post-commit work items via async.Runner,
// draining synchronously before returning -- grounded on the
// documented usage pattern in the teacher's async package (spin
// RunAsync calls, then loop ProcessMessages until all have replied).
// Failures are logged, never returned: post-commit side effects never
// undo committed state (spec.md §7).
func (m *Manager) flush(items []workItem) {
	if len(items) == 0 {
		return
	}
	runner := async.NewRunner()
	for _, raw := range items {
		item := raw
		runner.RunAsync(func() error {
			switch w := item.(type) {
			case killWork:
				m.driver.KillTask(w.taskID)
			case publishWork:
				m.sink.Publish(w.change)
			case createTaskWork:
				// no external system to notify on task creation today;
				// the hook exists so one can be wired in without
				// touching the transition table.
			}
			return nil
		}, func(err error) {
			if err != nil {
				m.stats.Counter(stats.StateManagerPostCommitErrCounter).Inc(1)
				log.WithError(err).Warn("statemanager: post-commit work failed")
			}
		})
		m.stats.Counter(stats.StateManagerPostCommitWorkCounter).Inc(1)
	}
	for runner.NumRunning() > 0 {
		runner.ProcessMessages()
	}
}
