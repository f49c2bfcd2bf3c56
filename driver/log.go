package driver

import (
	log "github.com/sirupsen/logrus"
)

// LogDriver logs kill requests instead of dispatching them anywhere;
// useful for the demo binary and for tests that only assert on state,
// not on side effects.
type LogDriver struct{}

func (LogDriver) KillTask(taskID string) {
	log.WithFields(log.Fields{"taskId": taskID}).Info("driver: kill task")
}

// LogEventSink logs each state change at info level.
type LogEventSink struct{}

func (LogEventSink) Publish(change TaskStateChange) {
	log.WithFields(log.Fields{
		"taskId": change.TaskID,
		"from":   change.OldStatus,
		"to":     change.NewStatus,
	}).Info("task state change")
}
