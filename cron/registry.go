package cron

import (
	"sync"

	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/sched"
)

// registryEntry pairs a job's current config with the Trigger handle
// backing its live registration.
type registryEntry struct {
	config sched.JobConfig
	handle Handle
}

// Registry is CronJobRegistry (spec.md §4.3): JobKey -> (JobConfig,
// schedulerHandle). It never calls back into a scheduler core
// directly -- onFire is supplied at construction time so Registry has
// no back-pointer to whatever owns it (spec.md §9's redesign
// guidance, applied the same way statemanager.Manager avoids a
// back-pointer to the scheduler core).
type Registry struct {
	mu      sync.Mutex
	trigger Trigger
	onFire  func(sched.JobKey) error
	entries map[string]*registryEntry
	stats   stats.StatsReceiver
}

// NewRegistry builds a Registry backed by trigger; onFire is invoked
// (never under Registry's lock) once per cron occurrence. An error
// returned from onFire is counted but otherwise swallowed -- Registry
// has no caller to propagate it to once the goroutine has fired.
// statsReceiver may be nil.
func NewRegistry(trigger Trigger, onFire func(sched.JobKey) error, statsReceiver stats.StatsReceiver) *Registry {
	if statsReceiver == nil {
		statsReceiver = stats.NilStatsReceiver()
	}
	return &Registry{
		trigger: trigger,
		onFire:  onFire,
		entries: make(map[string]*registryEntry),
		stats:   statsReceiver,
	}
}

// Schedule registers jobConfig's cron schedule, replacing any prior
// registration for the same JobKey (createJob calls this for a fresh
// key; initiateJobUpdate's cron path relies on the replace behavior
// via Replace).
func (r *Registry) Schedule(jobConfig sched.JobConfig) error {
	if !r.trigger.IsValidSchedule(jobConfig.CronSchedule) {
		return sched.NewInvalidConfigurationError("cronSchedule", "not a valid cron expression: "+jobConfig.CronSchedule)
	}
	key := jobConfig.Key
	handle, err := r.trigger.Schedule(jobConfig.CronSchedule, func() {
		if err := r.onFire(key); err != nil {
			r.stats.Counter(stats.CronCallbackErrCounter).Inc(1)
		}
	})
	if err != nil {
		return sched.NewInvalidConfigurationError("cronSchedule", err.Error())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[key.String()]; ok {
		r.trigger.Deschedule(existing.handle)
	}
	r.entries[key.String()] = &registryEntry{config: jobConfig, handle: handle}
	r.stats.Gauge(stats.CronRegisteredJobsGauge).Update(int64(len(r.entries)))
	return nil
}

// Deschedule removes the registration for key, if any (I4: called
// whenever killTasks strictly-job-scope kills a cron-registered
// JobKey). It reports whether a registration was present.
func (r *Registry) Deschedule(key sched.JobKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key.String()
	entry, ok := r.entries[k]
	if !ok {
		return false
	}
	r.trigger.Deschedule(entry.handle)
	delete(r.entries, k)
	r.stats.Gauge(stats.CronRegisteredJobsGauge).Update(int64(len(r.entries)))
	return true
}

// HasJob reports whether key is currently registered.
func (r *Registry) HasJob(key sched.JobKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key.String()]
	return ok
}

// GetJobs returns the JobConfig for every registered cron job. Order
// is unspecified.
func (r *Registry) GetJobs() []sched.JobConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sched.JobConfig, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.config)
	}
	return out
}

// Replace is deschedule-then-schedule (spec.md §4.3), used by
// initiateJobUpdate to swap a cron job's JobConfig without a gap in
// which the old and new registrations could both be live.
func (r *Registry) Replace(jobConfig sched.JobConfig) error {
	r.Deschedule(jobConfig.Key)
	return r.Schedule(jobConfig)
}
