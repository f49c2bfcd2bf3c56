package sched

import "testing"

func exampleTask(status ScheduleStatus, instance uint32) ScheduledTask {
	key := JobKey{Role: "www-data", Environment: "prod", Name: "hello"}
	return ScheduledTask{
		TaskID: "task-1",
		Status: status,
		Assigned: AssignedTask{
			Task: TaskConfig{JobKey: key, InstanceID: instance},
		},
	}
}

func TestQueryForJobMatchesAnyStatus(t *testing.T) {
	key := JobKey{Role: "www-data", Environment: "prod", Name: "hello"}
	q := ForJob(key)
	for _, s := range []ScheduleStatus{PENDING, RUNNING, FINISHED} {
		if !q.Matches(exampleTask(s, 0)) {
			t.Errorf("expected match for status %s", s)
		}
	}
}

func TestQueryForJobRejectsOtherJob(t *testing.T) {
	other := JobKey{Role: "www-data", Environment: "prod", Name: "other"}
	q := ForJob(other)
	if q.Matches(exampleTask(RUNNING, 0)) {
		t.Errorf("expected no match for a differently keyed task")
	}
}

func TestActiveInInstanceExcludesTerminal(t *testing.T) {
	key := JobKey{Role: "www-data", Environment: "prod", Name: "hello"}
	q := ActiveInInstance(key, 3)
	if q.Matches(exampleTask(FINISHED, 3)) {
		t.Errorf("expected FINISHED to be excluded from the active set")
	}
	if !q.Matches(exampleTask(RUNNING, 3)) {
		t.Errorf("expected RUNNING to be included in the active set")
	}
	if q.Matches(exampleTask(RUNNING, 4)) {
		t.Errorf("expected a different instance to be excluded")
	}
}

func TestActiveInJob(t *testing.T) {
	key := JobKey{Role: "www-data", Environment: "prod", Name: "hello"}
	q := ActiveInJob(key)
	if !q.Matches(exampleTask(PENDING, 7)) {
		t.Errorf("expected PENDING at any instance to match")
	}
	if q.Matches(exampleTask(KILLED, 7)) {
		t.Errorf("expected KILLED to be excluded")
	}
}

func TestIsStrictlyJobScoped(t *testing.T) {
	key := JobKey{Role: "www-data", Environment: "prod", Name: "hello"}
	if !ForJob(key).IsStrictlyJobScoped() {
		t.Errorf("expected a bare job-key query to be strictly job-scoped")
	}
	if ActiveInJob(key).IsStrictlyJobScoped() {
		t.Errorf("expected a status-filtered query to not be strictly job-scoped")
	}
	if ForInstance(key, 0).IsStrictlyJobScoped() {
		t.Errorf("expected an instance-filtered query to not be strictly job-scoped")
	}
}

func TestForTaskIDs(t *testing.T) {
	q := ForTaskIDs("a", "b")
	task := exampleTask(RUNNING, 0)
	task.TaskID = "a"
	if !q.Matches(task) {
		t.Errorf("expected match on listed task id")
	}
	task.TaskID = "c"
	if q.Matches(task) {
		t.Errorf("expected no match on unlisted task id")
	}
}
