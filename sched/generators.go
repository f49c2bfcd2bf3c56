package sched

import (
	"fmt"
	"math/rand"

	"github.com/leanovate/gopter"
)

var generatorEnvironments = []string{"prod", "devel", "test", "staging"}

// genIdentifier produces a random identifier matching identifierPattern.
func genIdentifier(rng *rand.Rand, prefix string) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	n := 4 + rng.Intn(8)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return fmt.Sprintf("%s%s", prefix, string(buf))
}

// GenRandomJobKey builds a well-formed, randomly populated JobKey.
func GenRandomJobKey(rng *rand.Rand) JobKey {
	return JobKey{
		Role:        genIdentifier(rng, "role-"),
		Environment: generatorEnvironments[rng.Intn(len(generatorEnvironments))],
		Name:        genIdentifier(rng, "job-"),
	}
}

// GenRandomTaskConfig builds a well-formed TaskConfig template for key.
func GenRandomTaskConfig(key JobKey, rng *rand.Rand) TaskConfig {
	return TaskConfig{
		Owner:           Owner{Role: key.Role, User: genIdentifier(rng, "user-")},
		JobKey:          key,
		CPU:             1 + rng.Float64()*8,
		RAMMB:           uint64(128 + rng.Intn(8192)),
		DiskMB:          uint64(256 + rng.Intn(16384)),
		ExecutorConfig:  ExecutorConfig{Name: "thermos"},
		MaxTaskFailures: uint32(rng.Intn(5)),
	}
}

// GenRandomJobConfig builds a well-formed JobConfig with instanceCount
// in [1, 20] and no cron schedule.
func GenRandomJobConfig(rng *rand.Rand) JobConfig {
	key := GenRandomJobKey(rng)
	return JobConfig{
		Key:           key,
		InstanceCount: uint32(1 + rng.Intn(20)),
		Template:      GenRandomTaskConfig(key, rng),
	}
}

// GopterGenJobConfig wraps GenRandomJobConfig for use with
// prop.ForAll.
func GopterGenJobConfig() gopter.Gen {
	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		cfg := GenRandomJobConfig(genParams.Rng)
		return gopter.NewGenResult(cfg, gopter.NoShrinker)
	}
}
