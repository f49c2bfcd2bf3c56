package storage

import (
	"github.com/hashicorp/go-memdb"

	"github.com/mgargenta/incubator-aurora/sched"
)

// TaskStore is the read side of the transactional task store: a
// point-in-time snapshot of every task, or a filtered subset via
// sched.Query.
type TaskStore interface {
	Snapshot() ([]sched.ScheduledTask, error)
	Fetch(q sched.Query) ([]sched.ScheduledTask, error)
}

// MutableStore is the write side. Mutate runs fn inside a single
// serializable write transaction: memdb permits only one live write
// transaction at a time, so the store enforces "single logical
// writer, no concurrent write transactions" for free. If fn returns
// an error the transaction is aborted and none of fn's writes are
// visible; otherwise it is committed atomically.
type MutableStore interface {
	TaskStore
	Mutate(fn func(txn MutableStoreTxn) error) error
}

// MutableStoreTxn is the view of the store available inside a Mutate
// callback: reads see the transaction's own uncommitted writes.
type MutableStoreTxn interface {
	Fetch(q sched.Query) ([]sched.ScheduledTask, error)
	Insert(task sched.ScheduledTask) error
	Delete(taskID string) error
}

// MemStore is an in-memory MutableStore backed by
// github.com/hashicorp/go-memdb, grounded on
// armadaproject-armada's JobDb: a single indexed table, ReadTxn for
// snapshot reads, WriteTxn (here, wrapped by Mutate) for the sole
// writer.
type MemStore struct {
	db *memdb.MemDB
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() (*MemStore, error) {
	db, err := memdb.NewMemDB(taskDbSchema())
	if err != nil {
		return nil, sched.WrapStorageException("open store", err)
	}
	return &MemStore{db: db}, nil
}

func toStoredTask(task sched.ScheduledTask) *storedTask {
	t := task
	key := t.JobKey()
	return &storedTask{
		TaskID:      t.TaskID,
		Role:        key.Role,
		Environment: key.Environment,
		Name:        key.Name,
		InstanceID:  t.InstanceID(),
		Status:      int(t.Status),
		Task:        &t,
	}
}

func fromStoredTask(obj interface{}) sched.ScheduledTask {
	st := obj.(*storedTask)
	return *st.Task.(*sched.ScheduledTask)
}

func fetch(txn *memdb.Txn, q sched.Query) ([]sched.ScheduledTask, error) {
	var iter memdb.ResultIterator
	var err error
	if q.JobKey != nil {
		iter, err = txn.Get(tasksTable, jobIndex, q.JobKey.Role, q.JobKey.Environment, q.JobKey.Name)
	} else {
		iter, err = txn.Get(tasksTable, idIndex)
	}
	if err != nil {
		return nil, sched.WrapStorageException("fetch", err)
	}
	var out []sched.ScheduledTask
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		task := fromStoredTask(obj)
		if q.Matches(task) {
			out = append(out, task)
		}
	}
	return out, nil
}

// Snapshot returns every task currently in the store.
func (s *MemStore) Snapshot() ([]sched.ScheduledTask, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fetch(txn, sched.Query{})
}

// Fetch returns the tasks matching q as of a fresh read-only
// transaction.
func (s *MemStore) Fetch(q sched.Query) ([]sched.ScheduledTask, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fetch(txn, q)
}

// Mutate runs fn inside a write transaction, committing on success
// and aborting on error.
func (s *MemStore) Mutate(fn func(txn MutableStoreTxn) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	w := &memStoreTxn{txn: txn}
	if err := fn(w); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// memStoreTxn implements MutableStoreTxn against a live memdb write
// transaction.
type memStoreTxn struct {
	txn *memdb.Txn
}

func (w *memStoreTxn) Fetch(q sched.Query) ([]sched.ScheduledTask, error) {
	return fetch(w.txn, q)
}

func (w *memStoreTxn) Insert(task sched.ScheduledTask) error {
	if err := w.txn.Insert(tasksTable, toStoredTask(task)); err != nil {
		return sched.WrapStorageException("insert", err)
	}
	return nil
}

func (w *memStoreTxn) Delete(taskID string) error {
	if err := w.txn.Delete(tasksTable, &storedTask{TaskID: taskID}); err != nil {
		if err == memdb.ErrNotFound {
			return nil
		}
		return sched.WrapStorageException("delete", err)
	}
	return nil
}
