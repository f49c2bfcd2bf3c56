package scheduler

import "github.com/mgargenta/incubator-aurora/sched"

// FilterResult is JobFilter's verdict (spec.md §6): PASS, or FAIL with
// a human-readable reason surfaced in the resulting
// InvalidConfigurationError.
type FilterResult struct {
	Pass   bool
	Reason string
}

// Pass and Fail build the two FilterResult shapes admission policies
// return.
func Pass() FilterResult { return FilterResult{Pass: true} }
func Fail(reason string) FilterResult { return FilterResult{Pass: false, Reason: reason} }

// JobFilter is the admission hook createJob calls before touching any
// state (spec.md §6). Implementations are expected to be pure and
// fast -- createJob calls it synchronously before validating anything
// else about cluster state.
type JobFilter interface {
	Filter(jobConfig sched.JobConfig) FilterResult
}

// AllowAllFilter passes every job unconditionally. It is the default
// wired by cmd/schedulerd when no admission policy is configured.
type AllowAllFilter struct{}

func (AllowAllFilter) Filter(sched.JobConfig) FilterResult { return Pass() }
