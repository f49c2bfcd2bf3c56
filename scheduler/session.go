package scheduler

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/mgargenta/incubator-aurora/sched"
)

// updateSession is the per-JobKey token-protected update state
// (spec.md §4.2): a random 128-bit hex token guards updateShards,
// rollbackShards, and finishUpdate against a stale or forged caller.
type updateSession struct {
	Token     string
	User      string
	OldConfig sched.JobConfig
	NewConfig sched.JobConfig
}

// newUpdateToken returns a 128-bit random token, hex-encoded --
// grounded on google/uuid.NewRandom()'s 16-byte crypto/rand read, hex
// rather than dashed since the spec calls for a raw token, not a UUID
// string.
func newUpdateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
