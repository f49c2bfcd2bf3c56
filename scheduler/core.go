package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/cron"
	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/statemanager"
)

// StateManager is the slice of statemanager.Manager's surface Core
// depends on: the base StateManager contract (spec.md §4.1) plus the
// three operations only a scheduler-core-level caller needs
// (KillTasks, ChangeStateWithConfig, RewriteConfig). Kept as an
// interface, distinct from statemanager.StateManager, so scheduler
// tests can substitute a narrower fake than the full Manager.
type StateManager interface {
	statemanager.StateManager
	KillTasks(ctx context.Context, q sched.Query, message string) (int, error)
	ChangeStateWithConfig(ctx context.Context, q sched.Query, newStatus sched.ScheduleStatus, cfg sched.TaskConfig, message string) (int, error)
	RewriteConfig(ctx context.Context, taskID string, cfg sched.TaskConfig) error
}

// ShardUpdateResult is updateShards/rollbackShards's per-instance
// verdict (spec.md §4.2).
type ShardUpdateResult int

const (
	ShardUnchanged ShardUpdateResult = iota
	ShardRestarting
	ShardAdded
	ShardKilled
)

func (r ShardUpdateResult) String() string {
	switch r {
	case ShardUnchanged:
		return "UNCHANGED"
	case ShardRestarting:
		return "RESTARTING"
	case ShardAdded:
		return "ADDED"
	case ShardKilled:
		return "KILLED"
	default:
		return "UNKNOWN"
	}
}

// UpdateResult is finishUpdate's outcome argument (spec.md §4.2).
type UpdateResult int

const (
	UpdateSuccess UpdateResult = iota
	UpdateFailed
	UpdateTerminate
)

// Core is SchedulerCore: the public facade over StateManager and
// cron.Registry. It is constructed with explicit wiring -- cron's
// onFire callback closes over Core.StartCronJob at construction, not
// via a back-pointer field cron.Registry holds (spec.md §9's redesign
// guidance, mirrored from how statemanager.Manager avoids one).
type Core struct {
	mgr    StateManager
	cron   *cron.Registry
	filter JobFilter
	stats  stats.StatsReceiver

	mu       sync.Mutex
	sessions map[string]*updateSession
}

// New constructs a Core. filter and statsReceiver may be nil, in
// which case AllowAllFilter and a nil stats.StatsReceiver are used.
// The caller is expected to have built cronRegistry with
// core.StartCronJob wired as its onFire callback; since Core does not
// exist until after New returns, callers typically build the
// Registry with a small indirection (see cmd/schedulerd) that forwards
// to whatever Core New produces.
func New(mgr StateManager, cronRegistry *cron.Registry, filter JobFilter, statsReceiver stats.StatsReceiver) *Core {
	if filter == nil {
		filter = AllowAllFilter{}
	}
	if statsReceiver == nil {
		statsReceiver = stats.NilStatsReceiver()
	}
	return &Core{
		mgr:      mgr,
		cron:     cronRegistry,
		filter:   filter,
		stats:    statsReceiver,
		sessions: make(map[string]*updateSession),
	}
}

func instanceConfig(template sched.TaskConfig, instanceID uint32) sched.TaskConfig {
	cfg := template.Clone()
	cfg.InstanceID = instanceID
	return cfg
}

func instanceConfigs(jobConfig sched.JobConfig) []sched.TaskConfig {
	configs := make([]sched.TaskConfig, 0, jobConfig.InstanceCount)
	for i := uint32(0); i < jobConfig.InstanceCount; i++ {
		configs = append(configs, instanceConfig(jobConfig.Template, i))
	}
	return configs
}

// CreateJob implements createJob (spec.md §4.2).
func (c *Core) CreateJob(ctx context.Context, jobConfig sched.JobConfig) error {
	if err := sched.ValidateJobConfig(jobConfig); err != nil {
		return err
	}
	if result := c.filter.Filter(jobConfig); !result.Pass {
		c.stats.Counter(stats.SchedulerJobsRejectedCounter).Inc(1)
		return sched.NewInvalidConfigurationError("job", result.Reason)
	}
	if c.cron.HasJob(jobConfig.Key) {
		c.stats.Counter(stats.SchedulerJobsRejectedCounter).Inc(1)
		return sched.NewScheduleException("createJob", "a cron job already exists for "+jobConfig.Key.String())
	}
	active, err := c.mgr.FetchTasks(ctx, sched.ActiveInJob(jobConfig.Key))
	if err != nil {
		return err
	}
	if len(active) > 0 {
		c.stats.Counter(stats.SchedulerJobsRejectedCounter).Inc(1)
		return sched.NewScheduleException("createJob", "an active job already exists for "+jobConfig.Key.String())
	}
	if jobConfig.IsCron() {
		c.stats.Counter(stats.SchedulerJobsCreatedCounter).Inc(1)
		return c.cron.Schedule(jobConfig)
	}
	if _, err := c.mgr.InsertTasks(ctx, instanceConfigs(jobConfig)); err != nil {
		c.stats.Counter(stats.SchedulerJobsRejectedCounter).Inc(1)
		return err
	}
	c.stats.Counter(stats.SchedulerJobsCreatedCounter).Inc(1)
	return nil
}

// StartCronJob implements startCronJob (spec.md §4.2): it is wired as
// a cron.Registry's onFire callback and is also safe to call directly
// (e.g. from an admin endpoint that force-fires a cron job early).
// Under RUN_OVERLAP it only inserts instances that are not already
// active, so the new firing's tasks never collide with the running
// ones on the same instanceId.
func (c *Core) StartCronJob(key sched.JobKey) error {
	ctx := context.Background()
	cfg, ok := c.cronJobConfig(key)
	if !ok {
		return sched.NewScheduleException("startCronJob", "no such cron job: "+key.String())
	}
	active, err := c.mgr.FetchTasks(ctx, sched.ActiveInJob(key))
	if err != nil {
		return err
	}
	occupied := make(map[uint32]struct{}, len(active))
	for _, task := range active {
		occupied[task.InstanceID()] = struct{}{}
	}
	if len(active) > 0 {
		switch cfg.CronCollisionPolicy {
		case sched.CancelNew:
			return nil
		case sched.KillExisting:
			if _, err := c.mgr.KillTasks(ctx, sched.ActiveInJob(key), "cron collision: killExisting"); err != nil {
				return err
			}
			occupied = nil
		case sched.RunOverlap:
			// fall through: insert only the instances not already active,
			// so I1 (at most one active task per instance) still holds.
		}
	}
	configs := instanceConfigs(cfg)
	if len(occupied) > 0 {
		filtered := configs[:0]
		for _, config := range configs {
			if _, present := occupied[config.InstanceID]; !present {
				filtered = append(filtered, config)
			}
		}
		configs = filtered
	}
	c.stats.Counter(stats.SchedulerCronFiringsCounter).Inc(1)
	if len(configs) == 0 {
		return nil
	}
	_, err = c.mgr.InsertTasks(ctx, configs)
	return err
}

func (c *Core) cronJobConfig(key sched.JobKey) (sched.JobConfig, bool) {
	for _, cfg := range c.cron.GetJobs() {
		if cfg.Key == key {
			return cfg, true
		}
	}
	return sched.JobConfig{}, false
}

// KillTasks implements killTasks (spec.md §4.2), including I4's
// cron-deregistration side effect for a strictly job-scoped kill.
func (c *Core) KillTasks(ctx context.Context, q sched.Query, user string) (int, error) {
	n, err := c.mgr.KillTasks(ctx, q, "killed by "+user)
	if err != nil {
		return 0, err
	}
	c.stats.Counter(stats.SchedulerKillRequestsCounter).Inc(1)
	if q.IsStrictlyJobScoped() && c.cron.HasJob(*q.JobKey) {
		c.cron.Deschedule(*q.JobKey)
	}
	return n, nil
}

// RestartShards implements restartShards (spec.md §4.2).
func (c *Core) RestartShards(ctx context.Context, key sched.JobKey, instanceIDs []uint32, user string) error {
	for _, id := range instanceIDs {
		tasks, err := c.mgr.FetchTasks(ctx, sched.ForInstance(key, id))
		if err != nil {
			return err
		}
		var active *sched.ScheduledTask
		for i := range tasks {
			if tasks[i].Status.IsActive() {
				active = &tasks[i]
			}
		}
		if active == nil {
			return sched.NewScheduleException("restartShards", fmt.Sprintf("no active task for instance %d of %s", id, key))
		}
		if active.Status == sched.PENDING {
			continue // already restarted, no transition needed
		}
		if _, err := c.mgr.ChangeState(ctx, sched.ForTaskIDs(active.TaskID), sched.RESTARTING, "restarted by "+user); err != nil {
			return err
		}
	}
	return nil
}

// InitiateJobUpdate implements initiateJobUpdate (spec.md §4.2). The
// returned token is empty exactly when the job is cron-managed (no
// rolling update session is created for cron jobs).
func (c *Core) InitiateJobUpdate(ctx context.Context, newConfig sched.JobConfig, user string) (string, error) {
	if err := sched.ValidateJobConfig(newConfig); err != nil {
		return "", err
	}
	key := newConfig.Key
	if newConfig.IsCron() {
		if !c.cron.HasJob(key) {
			return "", sched.NewScheduleException("initiateJobUpdate", "no such cron job: "+key.String())
		}
		return "", c.cron.Replace(newConfig)
	}

	active, err := c.mgr.FetchTasks(ctx, sched.ActiveInJob(key))
	if err != nil {
		return "", err
	}
	for _, t := range active {
		if t.Status == sched.UPDATING || t.Status == sched.ROLLBACK || t.Status == sched.RESTARTING {
			return "", sched.NewScheduleException("initiateJobUpdate", "an update is already in progress for "+key.String())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.sessions[key.String()]; exists {
		return "", sched.NewScheduleException("initiateJobUpdate", "an update token already exists for "+key.String())
	}
	token, err := newUpdateToken()
	if err != nil {
		return "", sched.WrapStorageException("initiateJobUpdate", err)
	}
	c.sessions[key.String()] = &updateSession{
		Token:     token,
		User:      user,
		OldConfig: reconstructJobConfig(active, key, newConfig),
		NewConfig: newConfig,
	}
	c.stats.Gauge(stats.SchedulerActiveUpdatesGauge).Update(int64(len(c.sessions)))
	return token, nil
}

// reconstructJobConfig approximates the job's current JobConfig from
// its live tasks: SchedulerCore never persists a canonical JobConfig
// for a non-cron job (only per-instance TaskConfig lives in each
// ScheduledTask), so the "oldConfig" side of an update session is
// rebuilt from whichever active task's config is available. This
// mirrors how createJob originally derived every instance's config
// from a single Template.
func reconstructJobConfig(active []sched.ScheduledTask, key sched.JobKey, fallback sched.JobConfig) sched.JobConfig {
	if len(active) == 0 {
		return fallback
	}
	maxInstance := uint32(0)
	for _, t := range active {
		if t.InstanceID() > maxInstance {
			maxInstance = t.InstanceID()
		}
	}
	return sched.JobConfig{Key: key, InstanceCount: maxInstance + 1, Template: active[0].Assigned.Task}
}

func (c *Core) requireSession(key sched.JobKey, token string) (*updateSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[key.String()]
	if !ok {
		return nil, sched.NewScheduleException("updateShards", "no active update session for "+key.String())
	}
	if token != session.Token {
		c.stats.Counter(stats.SchedulerTokenMismatchCounter).Inc(1)
		return nil, sched.NewScheduleException("updateShards", "token mismatch")
	}
	return session, nil
}

// UpdateShards implements updateShards (spec.md §4.2).
func (c *Core) UpdateShards(ctx context.Context, key sched.JobKey, user string, instanceIDs []uint32, token string) (map[uint32]ShardUpdateResult, error) {
	session, err := c.requireSession(key, token)
	if err != nil {
		return nil, err
	}
	return c.applyForward(ctx, session, key, instanceIDs, "updated by "+user, sched.UPDATING)
}

// applyForward drives every active instance in instanceIDs toward
// session.NewConfig, transitioning an already-active task through
// targetStatus (UPDATING for UpdateShards, ROLLBACK for
// RollbackShards) so the FSM records which direction is in flight.
func (c *Core) applyForward(ctx context.Context, session *updateSession, key sched.JobKey, instanceIDs []uint32, message string, targetStatus sched.ScheduleStatus) (map[uint32]ShardUpdateResult, error) {
	results := make(map[uint32]ShardUpdateResult, len(instanceIDs))
	for _, id := range instanceIDs {
		tasks, err := c.mgr.FetchTasks(ctx, sched.ForInstance(key, id))
		if err != nil {
			return nil, err
		}
		var active *sched.ScheduledTask
		for i := range tasks {
			if tasks[i].Status.IsActive() {
				active = &tasks[i]
			}
		}
		want := instanceConfig(session.NewConfig.Template, id)
		switch {
		case active != nil && active.Assigned.Task.Equivalent(want):
			results[id] = ShardUnchanged
		case active != nil && active.Status == sched.PENDING:
			if err := c.mgr.RewriteConfig(ctx, active.TaskID, want); err != nil {
				return nil, err
			}
			results[id] = ShardRestarting
		case active != nil:
			if _, err := c.mgr.ChangeStateWithConfig(ctx, sched.ForTaskIDs(active.TaskID), targetStatus, want, message); err != nil {
				return nil, err
			}
			results[id] = ShardRestarting
		case id < session.NewConfig.InstanceCount:
			if _, err := c.mgr.InsertTasks(ctx, []sched.TaskConfig{want}); err != nil {
				return nil, err
			}
			results[id] = ShardAdded
		default:
			results[id] = ShardUnchanged
		}
	}
	return results, nil
}

// RollbackShards implements rollbackShards (spec.md §4.2): symmetric
// with UpdateShards using OldConfig, except instances that only exist
// under NewConfig (added by the forward update) are killed outright
// rather than "updated" into a config they never had.
func (c *Core) RollbackShards(ctx context.Context, key sched.JobKey, user string, instanceIDs []uint32, token string) (map[uint32]ShardUpdateResult, error) {
	session, err := c.requireSession(key, token)
	if err != nil {
		return nil, err
	}
	message := "rolled back by " + user
	results := make(map[uint32]ShardUpdateResult, len(instanceIDs))
	var toRollback []uint32
	for _, id := range instanceIDs {
		if id >= session.OldConfig.InstanceCount {
			tasks, err := c.mgr.FetchTasks(ctx, sched.ForInstance(key, id))
			if err != nil {
				return nil, err
			}
			for _, t := range tasks {
				if t.Status.IsActive() {
					if _, err := c.mgr.KillTasks(ctx, sched.ForTaskIDs(t.TaskID), message); err != nil {
						return nil, err
					}
				}
			}
			results[id] = ShardKilled
			continue
		}
		toRollback = append(toRollback, id)
	}
	rolledBack, err := c.applyForwardWithTemplate(ctx, session.OldConfig, key, toRollback, message, sched.ROLLBACK)
	if err != nil {
		return nil, err
	}
	for id, r := range rolledBack {
		results[id] = r
	}
	return results, nil
}

// applyForwardWithTemplate is applyForward generalized over which
// JobConfig supplies the target Template -- UpdateShards always rolls
// forward to session.NewConfig, RollbackShards rolls back to
// session.OldConfig, and the per-instance comparison/transition logic
// is otherwise identical.
func (c *Core) applyForwardWithTemplate(ctx context.Context, target sched.JobConfig, key sched.JobKey, instanceIDs []uint32, message string, targetStatus sched.ScheduleStatus) (map[uint32]ShardUpdateResult, error) {
	fakeSession := &updateSession{NewConfig: target}
	return c.applyForward(ctx, fakeSession, key, instanceIDs, message, targetStatus)
}

// FinishUpdate implements finishUpdate (spec.md §4.2). hasToken is
// false to represent the spec's "absent token" case, which this
// implementation accepts only when user matches the session's owner
// (spec.md §9 open question, decided as "owner-match" -- see
// SPEC_FULL.md §9).
func (c *Core) FinishUpdate(ctx context.Context, key sched.JobKey, user, token string, hasToken bool, result UpdateResult) error {
	c.mu.Lock()
	session, ok := c.sessions[key.String()]
	if !ok {
		c.mu.Unlock()
		return sched.NewScheduleException("finishUpdate", "no active update session for "+key.String())
	}
	if hasToken {
		if token != session.Token {
			c.mu.Unlock()
			c.stats.Counter(stats.SchedulerTokenMismatchCounter).Inc(1)
			return sched.NewScheduleException("finishUpdate", "token mismatch")
		}
	} else if session.User != user {
		c.mu.Unlock()
		return sched.NewScheduleException("finishUpdate", "an absent token is only accepted from the update's own owner")
	}
	delete(c.sessions, key.String())
	c.stats.Gauge(stats.SchedulerActiveUpdatesGauge).Update(int64(len(c.sessions)))
	c.mu.Unlock()

	switch result {
	case UpdateSuccess:
		if session.NewConfig.InstanceCount < session.OldConfig.InstanceCount {
			return c.killOrphans(ctx, key, session.NewConfig.InstanceCount, session.OldConfig.InstanceCount)
		}
	case UpdateFailed, UpdateTerminate:
		if session.NewConfig.InstanceCount > session.OldConfig.InstanceCount {
			return c.killOrphans(ctx, key, session.OldConfig.InstanceCount, session.NewConfig.InstanceCount)
		}
	}
	return nil
}

func (c *Core) killOrphans(ctx context.Context, key sched.JobKey, from, to uint32) error {
	for id := from; id < to; id++ {
		if _, err := c.mgr.KillTasks(ctx, sched.ActiveInInstance(key, id), "orphaned by job resize"); err != nil {
			return err
		}
	}
	return nil
}

// SetTaskStatus implements setTaskStatus (spec.md §4.2): a thin
// fan-out to StateManager.ChangeState.
func (c *Core) SetTaskStatus(ctx context.Context, q sched.Query, status sched.ScheduleStatus, message string) (int, error) {
	return c.mgr.ChangeState(ctx, q, status, message)
}

// TasksDeleted implements tasksDeleted (spec.md §4.2): reported lost
// slaves reschedule active tasks via LOST, and unconditionally delete
// tasks already terminal.
func (c *Core) TasksDeleted(ctx context.Context, taskIDs []string) error {
	for _, id := range taskIDs {
		tasks, err := c.mgr.FetchTasks(ctx, sched.ForTaskIDs(id))
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			continue
		}
		task := tasks[0]
		if task.Status.IsActive() {
			if _, err := c.mgr.ChangeState(ctx, sched.ForTaskIDs(id), sched.LOST, "slave lost"); err != nil {
				return err
			}
		} else if err := c.mgr.DeleteTasks(ctx, []string{id}); err != nil {
			return err
		}
	}
	return nil
}
