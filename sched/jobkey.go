package sched

import "fmt"

// JobKey identifies a job by role, environment, and name. It is a value
// object: two JobKeys with equal fields are the same job.
type JobKey struct {
	Role        string
	Environment string
	Name        string
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Role, k.Environment, k.Name)
}

// CanonicalPath returns the "role/env/name" form used when validating
// dedicated-constraint values against a job's own identity.
func (k JobKey) CanonicalPath() string {
	return k.String()
}
