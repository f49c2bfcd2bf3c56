package storage

import "github.com/hashicorp/go-memdb"

const (
	tasksTable = "tasks"

	idIndex       = "id"
	instanceIndex = "instance"
	jobIndex      = "job"
	statusIndex   = "status"
)

// storedTask is the memdb-indexable wrapper around a sched.ScheduledTask.
// memdb indexes read struct fields by reflection, so the fields the
// schema below references are hoisted flat rather than nested inside
// Task.Assigned.Task.
type storedTask struct {
	TaskID      string
	Role        string
	Environment string
	Name        string
	InstanceID  uint32
	Status      int
	Task        interface{} // *sched.ScheduledTask
}

// taskDbSchema builds the single-table memdb schema backing MemStore.
// Grounded on armadaproject-armada's jobDbSchema(): one table, a
// unique primary-key index, and compound indexes over the task's job
// identity (there, per-queue ordering; here, per-job and
// per-(job,instance)) plus one over status. Fetch consults only the id
// and job indexes; the instance and status indexes are defined but no
// query in this package reads them.
func taskDbSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tasksTable: {
				Name: tasksTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "TaskID"},
					},
					instanceIndex: {
						Name:   instanceIndex,
						Unique: false,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Role"},
								&memdb.StringFieldIndex{Field: "Environment"},
								&memdb.StringFieldIndex{Field: "Name"},
								&memdb.UintFieldIndex{Field: "InstanceID"},
							},
						},
					},
					jobIndex: {
						Name:   jobIndex,
						Unique: false,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Role"},
								&memdb.StringFieldIndex{Field: "Environment"},
								&memdb.StringFieldIndex{Field: "Name"},
							},
						},
					},
					statusIndex: {
						Name:    statusIndex,
						Unique:  false,
						Indexer: &memdb.IntFieldIndex{Field: "Status"},
					},
				},
			},
		},
	}
}
