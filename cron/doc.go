// Package cron holds the registry of cron jobs (spec.md §5) and the
// trigger that fires them: Registry tracks which (JobKey, schedule,
// collision policy) triples are currently registered, and each
// registration owns a private goroutine that sleeps until its next
// occurrence and invokes a callback once per firing.
package cron
