package statemanager

import (
	"fmt"

	"github.com/nu7hatch/gouuid"

	"github.com/mgargenta/incubator-aurora/sched"
)

// TaskIDGenerator produces a taskId for a freshly inserted TaskConfig.
// Pluggable per §9's "replace global atomic counters with an
// injectable generator" guidance; test scenarios inject a
// deterministic generator so ancestor chains and lexicographic
// ordering are predictable.
type TaskIDGenerator func(sched.TaskConfig) string

// DefaultTaskIDGenerator builds a "<role>-<env>-<name>-<instance>-<uuid>"
// taskId, grounded on stateful_scheduler.go's generateJobId (uuid
// suffix for uniqueness, human-readable prefix for operators reading
// logs).
func DefaultTaskIDGenerator(cfg sched.TaskConfig) string {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4's only failure mode is a broken entropy source;
		// treat it the way stateful_scheduler.go treats an id
		// collision it cannot resolve -- panic rather than silently
		// hand out a colliding or empty id.
		panic(fmt.Sprintf("statemanager: failed to generate task id: %v", err))
	}
	return fmt.Sprintf("%s-%s-%s-%d-%s", cfg.JobKey.Role, cfg.JobKey.Environment, cfg.JobKey.Name, cfg.InstanceID, id.String())
}
