// Package backfill implements the one-time startup pass spec.md
// §4.4 requires before a scheduler starts serving requests: rewrite
// legacy TaskConfig fields to their modern defaults, then enforce I1
// (at most one active task per (JobKey, instanceId)) against whatever
// was persisted by a previous, possibly buggy, process.
package backfill

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/storage"
)

const legacyExecutorName = "AuroraExecutor"

// defaultMaxTaskFailures is the modern default for a task that
// predates maxTaskFailures being a required field.
const defaultMaxTaskFailures = 1

// Run performs the legacy-field backfill and I1 enforcement inside a
// single write transaction, grounded on the teacher's convention of
// doing startup repair work as one bounded operation rather than a
// background sweep (cf. stateful_scheduler.go's recovery pass run
// once before the scheduling loop starts). It must be called before
// any other component begins issuing requests against store.
func Run(ctx context.Context, store storage.MutableStore, hostname string, statsReceiver stats.StatsReceiver) error {
	if statsReceiver == nil {
		statsReceiver = stats.NilStatsReceiver()
	}
	defer statsReceiver.Latency(stats.BackfillLatency_ms).Time().Stop()
	return runBackfill(store, hostname, statsReceiver)
}

func runBackfill(store storage.MutableStore, hostname string, statsReceiver stats.StatsReceiver) error {
	return store.Mutate(func(txn storage.MutableStoreTxn) error {
		tasks, err := txn.Fetch(sched.Query{})
		if err != nil {
			return err
		}
		rewritten := 0
		for i := range tasks {
			if backfillConfig(&tasks[i].Assigned.Task) {
				rewritten++
				if err := txn.Insert(tasks[i]); err != nil {
					return err
				}
			}
		}
		if rewritten > 0 {
			statsReceiver.Counter(stats.BackfillRewrittenCounter).Inc(int64(rewritten))
			log.WithField("count", rewritten).Info("backfill: rewrote legacy TaskConfig fields")
		}
		return enforceShardUniqueness(txn, tasks, hostname, statsReceiver)
	})
}

// backfillConfig rewrites cfg in place per spec.md §4.4's three rules
// and reports whether anything changed.
func backfillConfig(cfg *sched.TaskConfig) bool {
	changed := false
	if cfg.MaxTaskFailures == 0 {
		cfg.MaxTaskFailures = defaultMaxTaskFailures
		changed = true
	}
	if len(cfg.Constraints) == 0 {
		cfg.Constraints = []sched.Constraint{{Type: sched.HostLimitConstraint, Value: "1"}}
		changed = true
	}
	if cfg.ExecutorConfig.Name == "" && len(cfg.LegacyThermosConfig) > 0 {
		cfg.ExecutorConfig = sched.ExecutorConfig{Name: legacyExecutorName, Data: cfg.LegacyThermosConfig}
		cfg.LegacyThermosConfig = nil
		changed = true
	}
	return changed
}

// enforceShardUniqueness implements I1's startup repair: group active
// tasks by (JobKey, instanceId); for each group of size > 1, keep the
// lexicographically smallest taskId and kill the rest outright
// (spec.md §4.4 -- this is a direct terminal write, not a supervised
// KillTasks call, since backfill runs before any Driver is wired up
// and has no post-commit side effect to dispatch).
func enforceShardUniqueness(txn storage.MutableStoreTxn, tasks []sched.ScheduledTask, hostname string, statsReceiver stats.StatsReceiver) error {
	type shardKey struct {
		key      sched.JobKey
		instance uint32
	}
	groups := make(map[shardKey][]sched.ScheduledTask)
	for _, task := range tasks {
		if !task.Status.IsActive() {
			continue
		}
		k := shardKey{key: task.JobKey(), instance: task.InstanceID()}
		groups[k] = append(groups[k], task)
	}

	killed := 0
	for _, group := range groups {
		if len(group) <= 1 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].TaskID < group[j].TaskID })
		for _, task := range group[1:] {
			task.Status = sched.KILLED
			task.Events = append(task.Events, sched.TaskEvent{
				Status:        sched.KILLED,
				Message:       "backfill: duplicate active task for instance, superseded by " + group[0].TaskID,
				SchedulerHost: hostname,
			})
			if err := txn.Insert(task); err != nil {
				return err
			}
			killed++
		}
	}
	if killed > 0 {
		statsReceiver.Counter(stats.BackfillDuplicatesKilledCounter).Inc(int64(killed))
		log.WithField("count", killed).Warn("backfill: killed duplicate active tasks to restore shard uniqueness")
	}
	return nil
}
