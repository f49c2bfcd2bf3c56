package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mgargenta/incubator-aurora/clock"
	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/cron"
	"github.com/mgargenta/incubator-aurora/driver"
	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/statemanager"
	"github.com/mgargenta/incubator-aurora/storage"
)

func testKey(name string) sched.JobKey {
	return sched.JobKey{Role: "www-data", Environment: "prod", Name: name}
}

func testTemplate(key sched.JobKey) sched.TaskConfig {
	return sched.TaskConfig{
		Owner:           sched.Owner{Role: key.Role, User: "jsmith"},
		JobKey:          key,
		CPU:             1,
		RAMMB:           512,
		DiskMB:          512,
		ExecutorConfig:  sched.ExecutorConfig{Name: "thermos"},
		MaxTaskFailures: 1,
	}
}

func sequentialIDGenerator() statemanager.TaskIDGenerator {
	var n int64
	return func(cfg sched.TaskConfig) string {
		i := atomic.AddInt64(&n, 1)
		return fmt.Sprintf("%s-%s-%d-task-%04d", cfg.JobKey.Role, cfg.JobKey.Name, cfg.InstanceID, i)
	}
}

// testFixture bundles a Core with the underlying components tests
// need to reach past the SchedulerCore facade (AssignTask, raw
// snapshots) -- the same "drive to RUNNING" pattern statemanager's
// own tests use, since assignment is invoked by the placement layer
// directly, not through SchedulerCore.
type testFixture struct {
	core  *Core
	mgr   *statemanager.Manager
	store *storage.MemStore
	drv   *driver.ChanDriver
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	store, err := storage.NewMemStore()
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	drv := driver.NewChanDriver(256)
	sink := driver.NewChanEventSink(256)
	mgr := statemanager.New(store, drv, sink, clock.New(), sequentialIDGenerator(), "scheduler-1", stats.NilStatsReceiver())

	f := &testFixture{mgr: mgr, store: store, drv: drv}
	registry := cron.NewRegistry(cron.NewTrigger(), func(key sched.JobKey) error {
		err := f.core.StartCronJob(key)
		if err != nil {
			t.Logf("cron fire for %s: %v", key, err)
		}
		return err
	}, nil)
	f.core = New(mgr, registry, nil, nil)
	return f
}

func (f *testFixture) driveToRunning(t *testing.T, taskID string) {
	t.Helper()
	ctx := context.Background()
	tasks, err := f.mgr.FetchTasks(ctx, sched.ForTaskIDs(taskID))
	if err != nil || len(tasks) != 1 {
		t.Fatalf("FetchTasks(%s): %d tasks, %v", taskID, len(tasks), err)
	}
	ports := make([]int32, 0, len(tasks[0].Assigned.Task.RequestedPorts))
	for range tasks[0].Assigned.Task.RequestedPorts {
		ports = append(ports, int32(31000+len(ports)))
	}
	if _, err := f.mgr.AssignTask(ctx, taskID, "host-1", "slave-1", ports); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if _, err := f.core.SetTaskStatus(ctx, sched.ForTaskIDs(taskID), sched.STARTING, ""); err != nil {
		t.Fatalf("SetTaskStatus->STARTING: %v", err)
	}
	if _, err := f.core.SetTaskStatus(ctx, sched.ForTaskIDs(taskID), sched.RUNNING, ""); err != nil {
		t.Fatalf("SetTaskStatus->RUNNING: %v", err)
	}
}

func TestCreateJobInsertsPendingTasks(t *testing.T) {
	f := newFixture(t)
	key := testKey("hello")
	cfg := sched.JobConfig{Key: key, InstanceCount: 3, Template: testTemplate(key)}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != sched.PENDING {
			t.Errorf("expected PENDING, got %s", task.Status)
		}
	}
}

func TestCreateJobRejectsDuplicateActiveJob(t *testing.T) {
	f := newFixture(t)
	key := testKey("hello")
	cfg := sched.JobConfig{Key: key, InstanceCount: 1, Template: testTemplate(key)}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := f.core.CreateJob(context.Background(), cfg); err == nil {
		t.Fatalf("expected a second createJob for the same active JobKey to be rejected")
	}
}

// TestScenario1CreateAndKill: createJob(KEY_A, n=10) -> 10 PENDING;
// killTasks(jobScoped(KEY_A)) -> 0 active tasks remain.
func TestScenario1CreateAndKill(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 10, Template: testTemplate(key)}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	if len(tasks) != 10 {
		t.Fatalf("expected 10 tasks, got %d", len(tasks))
	}
	if _, err := f.core.KillTasks(context.Background(), sched.ForJob(key), "jsmith"); err != nil {
		t.Fatalf("KillTasks: %v", err)
	}
	remaining, _ := f.mgr.FetchTasks(context.Background(), sched.ActiveInJob(key))
	if len(remaining) != 0 {
		t.Fatalf("expected 0 active tasks after a job-scoped kill, got %d", len(remaining))
	}
}

// TestScenario3FailureLimit / P4: a non-service task with
// maxTaskFailures=m driven through PENDING..RUNNING->FAILED m times
// ends with exactly m FAILED and zero PENDING.
func TestScenario3FailureLimit(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	template := testTemplate(key)
	template.MaxTaskFailures = 5
	cfg := sched.JobConfig{Key: key, InstanceCount: 1, Template: template}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	current := tasks[0].TaskID
	for i := 0; i < 5; i++ {
		f.driveToRunning(t, current)
		if _, err := f.core.SetTaskStatus(context.Background(), sched.ForTaskIDs(current), sched.FAILED, "boom"); err != nil {
			t.Fatalf("iteration %d: SetTaskStatus->FAILED: %v", i, err)
		}
		snap, _ := f.store.Snapshot()
		for _, s := range snap {
			if s.AncestorID == current {
				current = s.TaskID
			}
		}
	}
	snap, _ := f.store.Snapshot()
	failed, pending := 0, 0
	for _, s := range snap {
		switch s.Status {
		case sched.FAILED:
			failed++
		case sched.PENDING:
			pending++
		}
	}
	if failed != 5 {
		t.Errorf("expected 5 FAILED, got %d", failed)
	}
	if pending != 0 {
		t.Errorf("expected 0 PENDING, got %d", pending)
	}
	if len(snap) != 5 {
		t.Errorf("expected 5 total tasks, got %d", len(snap))
	}
}

// TestP5ServiceReschedule: a service task driven through the same
// sequence k times yields exactly 1 active task and k in
// FINISHED/FAILED.
func TestP5ServiceReschedule(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	template := testTemplate(key)
	template.IsService = true
	cfg := sched.JobConfig{Key: key, InstanceCount: 1, Template: template}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	tasks, _ := f.mgr.FetchTasks(context.Background(), sched.ForJob(key))
	current := tasks[0].TaskID
	const k = 4
	for i := 0; i < k; i++ {
		f.driveToRunning(t, current)
		if _, err := f.core.SetTaskStatus(context.Background(), sched.ForTaskIDs(current), sched.FINISHED, ""); err != nil {
			t.Fatalf("iteration %d: SetTaskStatus->FINISHED: %v", i, err)
		}
		snap, _ := f.store.Snapshot()
		for _, s := range snap {
			if s.AncestorID == current {
				current = s.TaskID
			}
		}
	}
	snap, _ := f.store.Snapshot()
	active, finished := 0, 0
	for _, s := range snap {
		if s.Status.IsActive() {
			active++
		}
		if s.Status == sched.FINISHED {
			finished++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly 1 active task, got %d", active)
	}
	if finished != k {
		t.Errorf("expected %d FINISHED tasks, got %d", k, finished)
	}
}

// TestP7StrictlyScopedKillDeschedulesCronJob / non-strictly-scoped
// does not.
func TestP7StrictlyScopedKillDeschedulesCronJob(t *testing.T) {
	f := newFixture(t)
	key := testKey("nightly")
	cfg := sched.JobConfig{Key: key, InstanceCount: 1, Template: testTemplate(key), CronSchedule: "0 0 * * *", CronCollisionPolicy: sched.KillExisting}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if !f.core.cron.HasJob(key) {
		t.Fatalf("expected the cron job to be registered")
	}
	if _, err := f.core.KillTasks(context.Background(), sched.ForJob(key), "jsmith"); err != nil {
		t.Fatalf("KillTasks: %v", err)
	}
	if f.core.cron.HasJob(key) {
		t.Fatalf("expected a strictly job-scoped kill to deschedule the cron job (I4/P7)")
	}
}

func TestP7NonStrictlyScopedKillDoesNotDeschedule(t *testing.T) {
	f := newFixture(t)
	key := testKey("nightly")
	cfg := sched.JobConfig{Key: key, InstanceCount: 1, Template: testTemplate(key), CronSchedule: "0 0 * * *", CronCollisionPolicy: sched.KillExisting}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := f.core.StartCronJob(key); err != nil {
		t.Fatalf("StartCronJob: %v", err)
	}
	scoped := sched.ForJob(key)
	scoped.Statuses = map[sched.ScheduleStatus]struct{}{sched.PENDING: {}}
	if _, err := f.core.KillTasks(context.Background(), scoped, "jsmith"); err != nil {
		t.Fatalf("KillTasks: %v", err)
	}
	if !f.core.cron.HasJob(key) {
		t.Fatalf("expected a non-strictly-scoped kill to leave the cron registration in place")
	}
}

func TestRestartShardsRequiresActiveTask(t *testing.T) {
	f := newFixture(t)
	key := testKey("A")
	cfg := sched.JobConfig{Key: key, InstanceCount: 1, Template: testTemplate(key)}
	if err := f.core.CreateJob(context.Background(), cfg); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := f.core.RestartShards(context.Background(), key, []uint32{5}, "jsmith"); err == nil {
		t.Fatalf("expected restartShards on a nonexistent instance to fail")
	}
}
