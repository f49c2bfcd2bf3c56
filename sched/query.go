package sched

// Query narrows a FetchTasks/ChangeState/killTasks call to a subset of
// stored tasks (spec.md §6). Zero or more of the fields may be set;
// set fields are ANDed together, and within a set field (InstanceIDs,
// TaskIDs, Statuses) membership is an OR.
type Query struct {
	Role        string
	JobKey      *JobKey
	InstanceIDs map[uint32]struct{}
	TaskIDs     map[string]struct{}
	Statuses    map[ScheduleStatus]struct{}
	SlaveHost   string
}

// ForJob returns a Query matching every task belonging to key,
// regardless of status.
func ForJob(key JobKey) Query {
	return Query{JobKey: &key}
}

// ForInstance returns a Query matching a single (job, instance) slot.
func ForInstance(key JobKey, instance uint32) Query {
	return Query{JobKey: &key, InstanceIDs: map[uint32]struct{}{instance: {}}}
}

// ForTaskIDs returns a Query matching exactly the named task ids.
func ForTaskIDs(ids ...string) Query {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Query{TaskIDs: set}
}

// IsStrictlyJobScoped reports whether q constrains nothing but a
// JobKey -- the distinction killTasks uses to decide whether a kill
// also tears down a cron registration (I4, P7).
func (q Query) IsStrictlyJobScoped() bool {
	return q.JobKey != nil &&
		q.Role == "" &&
		len(q.InstanceIDs) == 0 &&
		len(q.TaskIDs) == 0 &&
		len(q.Statuses) == 0 &&
		q.SlaveHost == ""
}

// Matches reports whether t satisfies q.
func (q Query) Matches(t ScheduledTask) bool {
	if q.JobKey != nil && t.JobKey() != *q.JobKey {
		return false
	}
	if q.Role != "" && t.JobKey().Role != q.Role {
		return false
	}
	if len(q.InstanceIDs) > 0 {
		if _, ok := q.InstanceIDs[t.InstanceID()]; !ok {
			return false
		}
	}
	if len(q.TaskIDs) > 0 {
		if _, ok := q.TaskIDs[t.TaskID]; !ok {
			return false
		}
	}
	if len(q.Statuses) > 0 {
		if _, ok := q.Statuses[t.Status]; !ok {
			return false
		}
	}
	if q.SlaveHost != "" && t.Assigned.SlaveHost != q.SlaveHost {
		return false
	}
	return true
}

var activeStatuses = []ScheduleStatus{
	PENDING, ASSIGNED, STARTING, RUNNING, UPDATING, ROLLBACK, RESTARTING, KILLING,
}

func activeStatusSet() map[ScheduleStatus]struct{} {
	set := make(map[ScheduleStatus]struct{}, len(activeStatuses))
	for _, s := range activeStatuses {
		set[s] = struct{}{}
	}
	return set
}

// Active restricts q to non-terminal statuses, matching spec.md §6's
// active() helper.
func (q Query) Active() Query {
	q.Statuses = activeStatusSet()
	return q
}

// ActiveInJob returns a Query matching every non-terminal task in key.
func ActiveInJob(key JobKey) Query {
	return ForJob(key).Active()
}

// ActiveInInstance returns a Query matching the non-terminal task (if
// any) at (key, instance) -- at most one may exist per I1.
func ActiveInInstance(key JobKey, instance uint32) Query {
	return ForInstance(key, instance).Active()
}
