// Package storage provides the transactional task store the state
// manager reads and writes: snapshot reads of the whole task set, and
// serializable write transactions with a single logical writer.
package storage
