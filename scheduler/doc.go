// Package scheduler implements SchedulerCore (spec.md §4.2): the
// public facade that turns createJob/killTasks/update-orchestration
// calls into StateManager transitions and CronJobRegistry
// registrations. It owns no persistent state of its own beyond the
// in-memory table of active update sessions; everything else is
// delegated to statemanager.Manager and cron.Registry.
package scheduler
