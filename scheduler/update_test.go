package scheduler

import (
	"context"
	"testing"

	"github.com/mgargenta/incubator-aurora/sched"
)

func templateWithPort(key sched.JobKey, portName string) sched.TaskConfig {
	t := testTemplate(key)
	t.RequestedPorts = map[string]struct{}{portName: {}}
	return t
}

// TestInitiateJobUpdateRejectsWhileUpdateInProgress covers the
// "update already in progress" branch of initiateJobUpdate.
func TestInitiateJobUpdateRejectsWhileUpdateInProgress(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "old")}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	for _, task := range tasks {
		f.driveToRunning(t, task.TaskID)
	}
	newCfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "new")}
	if _, err := f.core.InitiateJobUpdate(context.Background(), newCfg, "jsmith"); err != nil {
		t.Fatalf("InitiateJobUpdate: %v", err)
	}
	if _, err := f.core.InitiateJobUpdate(context.Background(), newCfg, "jsmith"); err == nil {
		t.Fatalf("expected a second concurrent initiateJobUpdate to be rejected")
	}
}

// TestP6TokenMismatchFailsWithoutMutation.
func TestP6TokenMismatchFailsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 2, Template: templateWithPort(key, "old")}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	for _, task := range tasks {
		f.driveToRunning(t, task.TaskID)
	}
	newCfg := sched.JobConfig{Key: key, InstanceCount: 2, Template: templateWithPort(key, "new")}
	token, err := f.core.InitiateJobUpdate(context.Background(), newCfg, "jsmith")
	if err != nil {
		t.Fatalf("InitiateJobUpdate: %v", err)
	}
	before, _ := f.store.Snapshot()
	if _, err := f.core.UpdateShards(context.Background(), key, "jsmith", []uint32{0, 1}, token+"garbage"); err == nil {
		t.Fatalf("expected a mismatched token to be rejected")
	}
	after, _ := f.store.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("expected no state mutation on a token mismatch, before=%d after=%d", len(before), len(after))
	}
	for i := range before {
		if before[i].Status != after[i].Status {
			t.Fatalf("expected no status mutation on a token mismatch")
		}
	}
}

// TestScenario4UpdateRestart: createJob with requestedPorts={"old"},
// n=4; advance to RUNNING; initiateJobUpdate with
// requestedPorts={"new"}, n=4; updateShards({0,1,2,3}) returns
// RESTARTING for all four and four tasks enter UPDATING. After
// KILLED + reschedule + RUNNING, all four active tasks carry
// requestedPorts={"new"}.
func TestScenario4UpdateRestart(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "old")}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	taskIDs := make([]string, len(tasks))
	for i, task := range tasks {
		f.driveToRunning(t, task.TaskID)
		taskIDs[i] = task.TaskID
	}

	newCfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "new")}
	token, err := f.core.InitiateJobUpdate(context.Background(), newCfg, "jsmith")
	if err != nil {
		t.Fatalf("InitiateJobUpdate: %v", err)
	}
	results, err := f.core.UpdateShards(context.Background(), key, "jsmith", []uint32{0, 1, 2, 3}, token)
	if err != nil {
		t.Fatalf("UpdateShards: %v", err)
	}
	for id, r := range results {
		if r != ShardRestarting {
			t.Errorf("instance %d: expected RESTARTING, got %s", id, r)
		}
	}
	updating, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	count := 0
	for _, task := range updating {
		if task.Status == sched.UPDATING {
			count++
		}
	}
	if count != 4 {
		t.Fatalf("expected 4 tasks in UPDATING, got %d", count)
	}

	// Drive UPDATING -> KILLED (reschedule fires with the swapped config) -> RUNNING.
	for _, id := range taskIDs {
		if _, err := f.core.SetTaskStatus(context.Background(), sched.ForTaskIDs(id), sched.KILLED, ""); err != nil {
			t.Fatalf("SetTaskStatus->KILLED: %v", err)
		}
	}
	snap, _ := f.store.Snapshot()
	for _, s := range snap {
		if s.Status == sched.PENDING {
			f.driveToRunning(t, s.TaskID)
		}
	}
	snap, _ = f.store.Snapshot()
	activeCount := 0
	for _, s := range snap {
		if !s.Status.IsActive() {
			continue
		}
		activeCount++
		if _, ok := s.Assigned.Task.RequestedPorts["new"]; !ok {
			t.Errorf("expected active task %s to carry requestedPorts={new}, got %v", s.TaskID, s.Assigned.Task.RequestedPorts)
		}
	}
	if activeCount != 4 {
		t.Fatalf("expected 4 active tasks, got %d", activeCount)
	}
}

// TestScenario5Rollback: as scenario 4, but after updateShards and a
// KILLED report for each updating task, rollbackShards({0..3}) returns RESTARTING for each
// and the final active tasks carry requestedPorts={"old"}.
func TestScenario5Rollback(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "old")}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	taskIDs := make([]string, len(tasks))
	for i, task := range tasks {
		f.driveToRunning(t, task.TaskID)
		taskIDs[i] = task.TaskID
	}

	newCfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "new")}
	token, err := f.core.InitiateJobUpdate(context.Background(), newCfg, "jsmith")
	if err != nil {
		t.Fatalf("InitiateJobUpdate: %v", err)
	}
	if _, err := f.core.UpdateShards(context.Background(), key, "jsmith", []uint32{0, 1, 2, 3}, token); err != nil {
		t.Fatalf("UpdateShards: %v", err)
	}
	for _, id := range taskIDs {
		if _, err := f.core.SetTaskStatus(context.Background(), sched.ForTaskIDs(id), sched.KILLED, ""); err != nil {
			t.Fatalf("SetTaskStatus->KILLED: %v", err)
		}
	}

	results, err := f.core.RollbackShards(context.Background(), key, "jsmith", []uint32{0, 1, 2, 3}, token)
	if err != nil {
		t.Fatalf("RollbackShards: %v", err)
	}
	for id, r := range results {
		if r != ShardRestarting {
			t.Errorf("instance %d: expected RESTARTING, got %s", id, r)
		}
	}

	snap, _ := f.store.Snapshot()
	for _, s := range snap {
		if s.Status == sched.PENDING {
			f.driveToRunning(t, s.TaskID)
		}
	}
	snap, _ = f.store.Snapshot()
	activeCount := 0
	for _, s := range snap {
		if !s.Status.IsActive() {
			continue
		}
		activeCount++
		if _, ok := s.Assigned.Task.RequestedPorts["old"]; !ok {
			t.Errorf("expected active task %s to carry requestedPorts={old}, got %v", s.TaskID, s.Assigned.Task.RequestedPorts)
		}
	}
	if activeCount != 4 {
		t.Fatalf("expected 4 active tasks, got %d", activeCount)
	}
}

// TestRollbackWhileUpdating covers aborting an update before its
// UPDATING tasks have reported back: rollbackShards is called while
// the tasks are still UPDATING (not yet KILLED), and must redirect
// them into ROLLBACK rather than silently doing nothing.
func TestRollbackWhileUpdating(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "old")}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	taskIDs := make([]string, len(tasks))
	for i, task := range tasks {
		f.driveToRunning(t, task.TaskID)
		taskIDs[i] = task.TaskID
	}

	newCfg := sched.JobConfig{Key: key, InstanceCount: 4, Template: templateWithPort(key, "new")}
	token, err := f.core.InitiateJobUpdate(context.Background(), newCfg, "jsmith")
	if err != nil {
		t.Fatalf("InitiateJobUpdate: %v", err)
	}
	if _, err := f.core.UpdateShards(context.Background(), key, "jsmith", []uint32{0, 1, 2, 3}, token); err != nil {
		t.Fatalf("UpdateShards: %v", err)
	}

	updating, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	for _, task := range updating {
		if task.Status != sched.UPDATING {
			t.Fatalf("expected task %s to be UPDATING before rollback, got %s", task.TaskID, task.Status)
		}
	}

	results, err := f.core.RollbackShards(context.Background(), key, "jsmith", []uint32{0, 1, 2, 3}, token)
	if err != nil {
		t.Fatalf("RollbackShards: %v", err)
	}
	for id, r := range results {
		if r != ShardRestarting {
			t.Errorf("instance %d: expected RESTARTING, got %s", id, r)
		}
	}

	rolledBack, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	for _, task := range rolledBack {
		if task.Status != sched.ROLLBACK {
			t.Fatalf("expected task %s to be ROLLBACK after an in-flight rollback, got %s", task.TaskID, task.Status)
		}
		if _, ok := task.Assigned.Task.RequestedPorts["old"]; !ok {
			t.Errorf("expected %s's config to already carry requestedPorts={old}, got %v", task.TaskID, task.Assigned.Task.RequestedPorts)
		}
	}

	for _, id := range taskIDs {
		if _, err := f.core.SetTaskStatus(context.Background(), sched.ForTaskIDs(id), sched.KILLED, ""); err != nil {
			t.Fatalf("SetTaskStatus->KILLED: %v", err)
		}
	}
	snap, _ := f.store.Snapshot()
	for _, s := range snap {
		if s.Status == sched.PENDING {
			f.driveToRunning(t, s.TaskID)
		}
	}
	snap, _ = f.store.Snapshot()
	activeCount := 0
	for _, s := range snap {
		if !s.Status.IsActive() {
			continue
		}
		activeCount++
		if _, ok := s.Assigned.Task.RequestedPorts["old"]; !ok {
			t.Errorf("expected active task %s to carry requestedPorts={old}, got %v", s.TaskID, s.Assigned.Task.RequestedPorts)
		}
	}
	if activeCount != 4 {
		t.Fatalf("expected 4 active tasks, got %d", activeCount)
	}
}
