// Command schedulerd wires storage, statemanager, cron, and
// scheduler into a single in-process scheduler core and exposes it
// as a cobra command tree, grounded on scootapi/client/cli.go's
// simpleCLIClient (a rootCmd built once with per-operation
// subcommands added to it) and binaries/scheduler/main.go's
// flag-parsing/stats-wiring style. There is no RPC transport here --
// the thrift server layer is out of spec scope -- so each subcommand
// runs directly against a locally-built scheduler.Core rather than
// dialing out to one.
package main

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mgargenta/incubator-aurora/backfill"
	"github.com/mgargenta/incubator-aurora/clock"
	"github.com/mgargenta/incubator-aurora/common/stats"
	"github.com/mgargenta/incubator-aurora/cron"
	"github.com/mgargenta/incubator-aurora/driver"
	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/scheduler"
	"github.com/mgargenta/incubator-aurora/statemanager"
	"github.com/mgargenta/incubator-aurora/storage"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cli, err := newCLI()
	if err != nil {
		log.WithError(err).Fatal("schedulerd: failed to start")
	}
	if err := cli.rootCmd.Execute(); err != nil {
		log.WithError(err).Error("schedulerd: command failed")
		os.Exit(1)
	}
}

// buildCore wires storage, statemanager, cron, and scheduler exactly
// as a real deployment would: an in-memory task store, a log-only
// Driver/EventSink standing in for the (out-of-scope) executor
// transport, and cron.Registry's onFire callback closing over the
// eventual *scheduler.Core the way scheduler.New's doc comment
// describes -- the Registry is built before Core exists, so the
// callback captures a pointer that is filled in immediately after.
func buildCore(host string) (*scheduler.Core, error) {
	statsReceiver, _ := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry, 15*time.Second)
	statsReceiver = statsReceiver.Precision(time.Millisecond)

	store, err := storage.NewMemStore()
	if err != nil {
		return nil, err
	}
	if err := backfill.Run(context.Background(), store, host, statsReceiver.Scope("backfill")); err != nil {
		return nil, err
	}

	mgr := statemanager.New(store, driver.LogDriver{}, driver.LogEventSink{}, clock.New(),
		statemanager.DefaultTaskIDGenerator, host, statsReceiver.Scope("stateManager"))

	var core *scheduler.Core
	registry := cron.NewRegistry(cron.NewTrigger(), func(key sched.JobKey) error {
		err := core.StartCronJob(key)
		if err != nil {
			log.WithError(err).WithField("job", key.String()).Warn("schedulerd: cron fire failed")
		}
		return err
	}, statsReceiver.Scope("cron"))

	core = scheduler.New(mgr, registry, scheduler.AllowAllFilter{}, statsReceiver.Scope("schedulerCore"))
	return core, nil
}
