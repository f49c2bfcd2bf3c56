package stats

/*
This file defines all the metrics being collected.   As new metrics are added please follow this pattern.
*/

const (
	/****************************** State Manager Metrics **************************/
	/*
		the number of tasks inserted via InsertTasks
	*/
	StateManagerTasksInsertedCounter = "stateManagerTasksInsertedCounter"

	/*
		the number of accepted state transitions
	*/
	StateManagerTransitionsCounter = "stateManagerTransitionsCounter"

	/*
		the number of transitions dropped because the task was already terminal (I2)
	*/
	StateManagerDroppedTerminalCounter = "stateManagerDroppedTerminalCounter"

	/*
		the number of tasks rescheduled as a result of a transition
	*/
	StateManagerRescheduledCounter = "stateManagerRescheduledCounter"

	/*
		the amount of time it takes to commit one StateManager write transaction
	*/
	StateManagerTxnLatency_ms = "stateManagerTxnLatency_ms"

	/*
		the number of post-commit kill/create work items dispatched
	*/
	StateManagerPostCommitWorkCounter = "stateManagerPostCommitWorkCounter"

	/*
		the number of post-commit work items whose driver/sink call returned an error
	*/
	StateManagerPostCommitErrCounter = "stateManagerPostCommitErrCounter"

	/****************************** Scheduler Core Metrics ***************************/
	/*
		the number of createJob calls accepted
	*/
	SchedulerJobsCreatedCounter = "schedulerJobsCreatedCounter"

	/*
		the number of createJob calls rejected (JobFilter FAIL or duplicate JobKey)
	*/
	SchedulerJobsRejectedCounter = "schedulerJobsRejectedCounter"

	/*
		the number of killTasks calls received
	*/
	SchedulerKillRequestsCounter = "schedulerKillRequestsCounter"

	/*
		the number of in-flight update sessions
	*/
	SchedulerActiveUpdatesGauge = "schedulerActiveUpdatesGauge"

	/*
		the number of updateShards/rollbackShards/finishUpdate calls rejected for token mismatch
	*/
	SchedulerTokenMismatchCounter = "schedulerTokenMismatchCounter"

	/*
		the number of cron-triggered job starts
	*/
	SchedulerCronFiringsCounter = "schedulerCronFiringsCounter"

	/****************************** Cron Registry Metrics *****************************/
	/*
		the number of jobs currently registered in the cron registry
	*/
	CronRegisteredJobsGauge = "cronRegisteredJobsGauge"

	/*
		the number of cron callback invocations that returned an error
	*/
	CronCallbackErrCounter = "cronCallbackErrCounter"

	/****************************** Backfill Metrics ***********************************/
	/*
		the number of legacy TaskConfigs rewritten at startup
	*/
	BackfillRewrittenCounter = "backfillRewrittenCounter"

	/*
		the number of tasks force-killed at startup to restore shard uniqueness (I1)
	*/
	BackfillDuplicatesKilledCounter = "backfillDuplicatesKilledCounter"

	/*
		the amount of time the startup backfill transaction took
	*/
	BackfillLatency_ms = "backfillLatency_ms"
)
