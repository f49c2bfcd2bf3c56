package sched

import "time"

// MaxTaskIDLength is the process-wide constant bounding generated
// taskIds (spec.md §6, invariant I6).
const MaxTaskIDLength = 255

// CronCollisionPolicy governs what happens when a cron job's schedule
// fires while an earlier firing's tasks are still active.
type CronCollisionPolicy int

const (
	KillExisting CronCollisionPolicy = iota
	CancelNew
	RunOverlap
)

func (p CronCollisionPolicy) String() string {
	switch p {
	case KillExisting:
		return "KILL_EXISTING"
	case CancelNew:
		return "CANCEL_NEW"
	case RunOverlap:
		return "RUN_OVERLAP"
	default:
		return "UNKNOWN"
	}
}

// Owner identifies who submitted a task: a role (the accounting/ACL
// principal) and the human user acting on its behalf.
type Owner struct {
	Role string
	User string
}

// ConstraintType distinguishes the placement-constraint flavors a
// TaskConfig may carry. The scheduler core does not interpret these
// beyond validating dedicated-constraint values (spec.md §6); actual
// placement is out of scope (spec.md §1).
type ConstraintType int

const (
	DedicatedConstraint ConstraintType = iota
	HostLimitConstraint
	ValueConstraint
)

// Constraint is an opaque placement constraint attached to a
// TaskConfig. Name/Value carry constraint-type-specific data (for
// HostLimitConstraint, Value is the string form of the limit).
type Constraint struct {
	Type  ConstraintType
	Name  string
	Value string
}

// ExecutorConfig names the executor implementation that will run a
// task and carries its opaque configuration payload. The executor
// runtime itself is out of scope (spec.md §1); this is just the
// pass-through record the state manager persists.
type ExecutorConfig struct {
	Name string
	Data []byte
}

// TaskConfig is the immutable-once-assigned description of one task
// instance (spec.md §3). Mutation is only permitted along the internal
// backfill/shard-id correction path (backfill package).
type TaskConfig struct {
	Owner           Owner
	JobKey          JobKey
	InstanceID      uint32
	CPU             float64
	RAMMB           uint64
	DiskMB          uint64
	RequestedPorts  map[string]struct{}
	Constraints     []Constraint
	ExecutorConfig  ExecutorConfig
	IsService       bool
	MaxTaskFailures uint32
	Production      bool
	ContactEmail    string

	// LegacyThermosConfig is a pre-ExecutorConfig task's opaque
	// configuration blob. Tasks written before ExecutorConfig existed
	// carry this instead; the backfill package synthesizes an
	// ExecutorConfig named "AuroraExecutor" from it and clears the
	// field.
	LegacyThermosConfig []byte
}

// Clone returns a deep copy safe to mutate independently of the
// receiver (used when writing an updated config over an existing
// PENDING task, or when backfilling legacy fields in place).
func (c TaskConfig) Clone() TaskConfig {
	out := c
	if c.RequestedPorts != nil {
		out.RequestedPorts = make(map[string]struct{}, len(c.RequestedPorts))
		for k := range c.RequestedPorts {
			out.RequestedPorts[k] = struct{}{}
		}
	}
	if c.Constraints != nil {
		out.Constraints = append([]Constraint(nil), c.Constraints...)
	}
	if c.ExecutorConfig.Data != nil {
		out.ExecutorConfig.Data = append([]byte(nil), c.ExecutorConfig.Data...)
	}
	if c.LegacyThermosConfig != nil {
		out.LegacyThermosConfig = append([]byte(nil), c.LegacyThermosConfig...)
	}
	return out
}

// Equivalent reports whether two TaskConfigs describe the same
// deployable unit, ignoring InstanceID (which is assigned separately)
// -- this is the byte-equal-after-normalization comparison
// updateShards uses to distinguish UNCHANGED from RESTARTING (spec.md
// §4.2).
func (c TaskConfig) Equivalent(other TaskConfig) bool {
	a, b := c, other
	a.InstanceID, b.InstanceID = 0, 0
	return configEqual(a, b)
}

func configEqual(a, b TaskConfig) bool {
	if a.Owner != b.Owner || a.JobKey != b.JobKey {
		return false
	}
	if a.CPU != b.CPU || a.RAMMB != b.RAMMB || a.DiskMB != b.DiskMB {
		return false
	}
	if a.IsService != b.IsService || a.MaxTaskFailures != b.MaxTaskFailures {
		return false
	}
	if a.Production != b.Production || a.ContactEmail != b.ContactEmail {
		return false
	}
	if a.ExecutorConfig.Name != b.ExecutorConfig.Name || string(a.ExecutorConfig.Data) != string(b.ExecutorConfig.Data) {
		return false
	}
	if len(a.RequestedPorts) != len(b.RequestedPorts) {
		return false
	}
	for p := range a.RequestedPorts {
		if _, ok := b.RequestedPorts[p]; !ok {
			return false
		}
	}
	if len(a.Constraints) != len(b.Constraints) {
		return false
	}
	for i := range a.Constraints {
		if a.Constraints[i] != b.Constraints[i] {
			return false
		}
	}
	return true
}

// JobConfig is a job's declaration: how many instances, the template
// they're stamped from, and optional cron scheduling (spec.md §3).
type JobConfig struct {
	Key                  JobKey
	InstanceCount        uint32
	Template             TaskConfig
	CronSchedule         string // empty means not cron-managed
	CronCollisionPolicy  CronCollisionPolicy
}

// IsCron reports whether this JobConfig is cron-managed.
func (j JobConfig) IsCron() bool {
	return j.CronSchedule != ""
}

// TaskEvent is one entry in a ScheduledTask's append-only history
// (invariant I3).
type TaskEvent struct {
	Timestamp     time.Time
	Status        ScheduleStatus
	Message       string
	SchedulerHost string
}

// AssignedTask is the placement-time addition to a ScheduledTask:
// which slave it landed on and which concrete ports it was granted.
type AssignedTask struct {
	TaskID        string
	SlaveID       string
	SlaveHost     string
	AssignedPorts map[string]int32
	Task          TaskConfig
}

// ScheduledTask is one materialized instance of a job (spec.md §3).
type ScheduledTask struct {
	TaskID       string
	Status       ScheduleStatus
	FailureCount uint32
	AncestorID   string
	Assigned     AssignedTask
	Events       []TaskEvent
}

// JobKey is a convenience accessor onto the embedded TaskConfig's key.
func (t ScheduledTask) JobKey() JobKey {
	return t.Assigned.Task.JobKey
}

// InstanceID is a convenience accessor onto the embedded TaskConfig's
// instance id.
func (t ScheduledTask) InstanceID() uint32 {
	return t.Assigned.Task.InstanceID
}
