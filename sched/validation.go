package sched

import (
	"regexp"
)

// identifierPattern bounds role, environment, and job name: all three
// must match spec.md §3/§6's `[A-Za-z0-9_.\-]+` charset, non-empty,
// no slashes (they delimit JobKey.String()).
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)

// ValidateJobKey checks that a JobKey's three components are all
// well-formed identifiers.
func ValidateJobKey(key JobKey) error {
	if !identifierPattern.MatchString(key.Role) {
		return NewInvalidConfigurationError("role", "must be a non-empty identifier without '/'")
	}
	if !identifierPattern.MatchString(key.Environment) {
		return NewInvalidConfigurationError("environment", "must be a non-empty identifier without '/'")
	}
	if !identifierPattern.MatchString(key.Name) {
		return NewInvalidConfigurationError("name", "must be a non-empty identifier without '/'")
	}
	return nil
}

// ValidateConstraints checks that dedicated constraints, if present,
// name a role/env/name path whose role component matches the owning
// job's own role -- the sole cross-check the scheduler core performs
// on an otherwise opaque constraint list (spec.md §6).
func ValidateConstraints(key JobKey, constraints []Constraint) error {
	for _, c := range constraints {
		switch c.Type {
		case DedicatedConstraint:
			if c.Value == "" {
				return NewInvalidConfigurationError("constraints.dedicated", "value must be non-empty")
			}
			if !dedicatedValueOwnedBy(c.Value, key) {
				return NewInvalidConfigurationError("constraints.dedicated", "dedicated value must be the job's role, role/<suffix>, or the job's own canonical path")
			}
		case HostLimitConstraint:
			if c.Value == "" {
				return NewInvalidConfigurationError("constraints.hostLimit", "value must be non-empty")
			}
		}
	}
	return nil
}

// dedicatedValueOwnedBy implements spec.md §6's dedicated-value rule:
// the value must be exactly the job's role, a "role/<suffix>" path, or
// the job's own canonical "role/env/name" path.
func dedicatedValueOwnedBy(value string, key JobKey) bool {
	if value == key.Role || value == key.CanonicalPath() {
		return true
	}
	prefix := key.Role + "/"
	return len(value) > len(prefix) && value[:len(prefix)] == prefix
}

// ValidateTaskConfig checks the resource, executor, and constraint
// fields of a single TaskConfig template. It does not check
// InstanceID, which is assigned by the caller of ValidateJobConfig.
func ValidateTaskConfig(t TaskConfig) error {
	if t.Owner.Role == "" || t.Owner.User == "" {
		return NewInvalidConfigurationError("owner", "role and user must both be non-empty")
	}
	if err := ValidateJobKey(t.JobKey); err != nil {
		return err
	}
	if t.CPU <= 0 {
		return NewInvalidConfigurationError("cpu", "must be positive")
	}
	if t.RAMMB == 0 {
		return NewInvalidConfigurationError("ramMb", "must be positive")
	}
	if t.DiskMB == 0 {
		return NewInvalidConfigurationError("diskMb", "must be positive")
	}
	if t.ExecutorConfig.Name == "" {
		return NewInvalidConfigurationError("executorConfig.name", "must be non-empty")
	}
	if err := ValidateConstraints(t.JobKey, t.Constraints); err != nil {
		return err
	}
	return nil
}

// ValidateJobConfig checks a JobConfig as a whole: the key, the task
// template, instance count bounds, and, if cron-managed, that the
// collision policy is a recognized one. The cron expression itself is
// not checked here; the cron package validates it at registration
// time.
func ValidateJobConfig(j JobConfig) error {
	if err := ValidateJobKey(j.Key); err != nil {
		return err
	}
	if j.Template.JobKey != j.Key {
		return NewInvalidConfigurationError("template.jobKey", "must match the job's own key")
	}
	if j.InstanceCount == 0 {
		return NewInvalidConfigurationError("instanceCount", "must be positive")
	}
	const maxInstances = 4000
	if j.InstanceCount > maxInstances {
		return NewInvalidConfigurationError("instanceCount", "exceeds the maximum instance count")
	}
	if err := ValidateTaskConfig(j.Template); err != nil {
		return err
	}
	if j.IsCron() {
		switch j.CronCollisionPolicy {
		case KillExisting, CancelNew, RunOverlap:
		default:
			return NewInvalidConfigurationError("cronCollisionPolicy", "unrecognized policy")
		}
	}
	return nil
}
