// Package sched defines the data model shared by the scheduler core and
// the state manager: job and task identity, task configuration, the
// scheduled-task lifecycle, the internal Query predicate, configuration
// validation, and the typed error taxonomy.
package sched
