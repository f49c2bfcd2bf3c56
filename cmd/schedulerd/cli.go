package main

import (
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mgargenta/incubator-aurora/scheduler"
)

// cli bundles the wired scheduler.Core with the cobra root command,
// grounded on scootapi/client/cli.go's simpleCLIClient: a struct
// holding the shared dependency, a rootCmd built once, and a
// command interface each subcommand type satisfies.
type cli struct {
	rootCmd *cobra.Command
	core    *scheduler.Core
}

// command is the per-subcommand contract every file in this package
// implements, mirroring scootapi/client's registerFlags/run split.
type command interface {
	registerFlags() *cobra.Command
	run(c *cli, cmd *cobra.Command, args []string) error
}

func newCLI() (*cli, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	core, err := buildCore(host)
	if err != nil {
		return nil, err
	}

	c := &cli{core: core}
	c.rootCmd = &cobra.Command{
		Use:   "schedulerd",
		Short: "schedulerd is a command-line front end to an in-process cluster workload scheduler",
		Run:   func(*cobra.Command, []string) {},
	}
	for _, cmd := range []command{
		&createJobCmd{},
		&killTasksCmd{},
		&restartShardsCmd{},
		&initiateUpdateCmd{},
		&updateShardsCmd{},
		&rollbackShardsCmd{},
		&finishUpdateCmd{},
		&setTaskStatusCmd{},
	} {
		c.addCmd(cmd)
	}
	return c, nil
}

func (c *cli) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(inner *cobra.Command, args []string) error {
		requestID := uuid.New().String()
		log.WithField("requestId", requestID).WithField("command", inner.Use).Info("schedulerd: dispatching")
		return cmd.run(c, inner, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}
