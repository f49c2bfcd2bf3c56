package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgargenta/incubator-aurora/sched"
	"github.com/mgargenta/incubator-aurora/scheduler"
)

// jobKeyFlags is embedded by every subcommand that addresses a job by
// role/environment/name, following the teacher's per-command flag
// struct convention (registerFlags returning a *cobra.Command with
// its own flag set).
type jobKeyFlags struct {
	role, env, name string
	user            string
}

func (f *jobKeyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", "", "job role")
	cmd.Flags().StringVar(&f.env, "env", "prod", "job environment")
	cmd.Flags().StringVar(&f.name, "name", "", "job name")
	cmd.Flags().StringVar(&f.user, "user", "", "acting user")
}

func (f *jobKeyFlags) key() sched.JobKey {
	return sched.JobKey{Role: f.role, Environment: f.env, Name: f.name}
}

func parseInstances(spec string) ([]uint32, error) {
	if spec == "" {
		return nil, nil
	}
	var ids []uint32
	for _, part := range strings.Split(spec, ",") {
		var id uint32
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid instance id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseStatus(name string) (sched.ScheduleStatus, error) {
	for s := sched.PENDING; s <= sched.LOST; s++ {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// createJobCmd implements createJob.
type createJobCmd struct {
	jobKeyFlags
	instanceCount uint32
	cpu           float64
	ramMB, diskMB uint64
	cronSchedule  string
}

func (c *createJobCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "create-job", Short: "Create a new job"}
	c.register(cmd)
	cmd.Flags().Uint32Var(&c.instanceCount, "instances", 1, "instance count")
	cmd.Flags().Float64Var(&c.cpu, "cpu", 1, "cpu per instance")
	cmd.Flags().Uint64Var(&c.ramMB, "ram_mb", 128, "ram per instance, in MB")
	cmd.Flags().Uint64Var(&c.diskMB, "disk_mb", 128, "disk per instance, in MB")
	cmd.Flags().StringVar(&c.cronSchedule, "cron", "", "cron schedule (empty for a non-cron job)")
	return cmd
}

func (c *createJobCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	key := c.key()
	jobConfig := sched.JobConfig{
		Key:           key,
		InstanceCount: c.instanceCount,
		CronSchedule:  c.cronSchedule,
		Template: sched.TaskConfig{
			Owner:           sched.Owner{Role: key.Role, User: c.user},
			JobKey:          key,
			CPU:             c.cpu,
			RAMMB:           c.ramMB,
			DiskMB:          c.diskMB,
			MaxTaskFailures: 1,
		},
	}
	if err := cl.core.CreateJob(context.Background(), jobConfig); err != nil {
		return err
	}
	fmt.Println("created", key.String())
	return nil
}

// killTasksCmd implements killTasks.
type killTasksCmd struct {
	jobKeyFlags
	instances string
}

func (c *killTasksCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "kill-tasks", Short: "Kill a job or a subset of its instances"}
	c.register(cmd)
	cmd.Flags().StringVar(&c.instances, "instances", "", "comma-separated instance ids (empty means the whole job)")
	return cmd
}

func (c *killTasksCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	ids, err := parseInstances(c.instances)
	if err != nil {
		return err
	}
	key := c.key()
	q := sched.ForJob(key)
	if len(ids) > 0 {
		set := make(map[uint32]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		q.InstanceIDs = set
	}
	n, err := cl.core.KillTasks(context.Background(), q, c.user)
	if err != nil {
		return err
	}
	fmt.Printf("killed %d task(s)\n", n)
	return nil
}

// restartShardsCmd implements restartShards.
type restartShardsCmd struct {
	jobKeyFlags
	instances string
}

func (c *restartShardsCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "restart-shards", Short: "Restart a set of a job's instances in place"}
	c.register(cmd)
	cmd.Flags().StringVar(&c.instances, "instances", "", "comma-separated instance ids")
	return cmd
}

func (c *restartShardsCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	ids, err := parseInstances(c.instances)
	if err != nil {
		return err
	}
	if err := cl.core.RestartShards(context.Background(), c.key(), ids, c.user); err != nil {
		return err
	}
	fmt.Println("restarted", len(ids), "instance(s)")
	return nil
}

// initiateUpdateCmd implements initiateJobUpdate.
type initiateUpdateCmd struct {
	jobKeyFlags
	instanceCount uint32
	cpu           float64
	ramMB         uint64
}

func (c *initiateUpdateCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "initiate-update", Short: "Begin a rolling update to a new job configuration"}
	c.register(cmd)
	cmd.Flags().Uint32Var(&c.instanceCount, "instances", 1, "new instance count")
	cmd.Flags().Float64Var(&c.cpu, "cpu", 1, "new cpu per instance")
	cmd.Flags().Uint64Var(&c.ramMB, "ram_mb", 128, "new ram per instance, in MB")
	return cmd
}

func (c *initiateUpdateCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	key := c.key()
	newConfig := sched.JobConfig{
		Key:           key,
		InstanceCount: c.instanceCount,
		Template: sched.TaskConfig{
			Owner:           sched.Owner{Role: key.Role, User: c.user},
			JobKey:          key,
			CPU:             c.cpu,
			RAMMB:           c.ramMB,
			MaxTaskFailures: 1,
		},
	}
	token, err := cl.core.InitiateJobUpdate(context.Background(), newConfig, c.user)
	if err != nil {
		return err
	}
	if token == "" {
		fmt.Println("cron job replaced, no update session created")
		return nil
	}
	fmt.Println("update token:", token)
	return nil
}

// updateShardsCmd implements updateShards.
type updateShardsCmd struct {
	jobKeyFlags
	instances string
	token     string
}

func (c *updateShardsCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "update-shards", Short: "Advance a set of instances to the update session's new config"}
	c.register(cmd)
	cmd.Flags().StringVar(&c.instances, "instances", "", "comma-separated instance ids")
	cmd.Flags().StringVar(&c.token, "token", "", "update session token")
	return cmd
}

func (c *updateShardsCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	ids, err := parseInstances(c.instances)
	if err != nil {
		return err
	}
	results, err := cl.core.UpdateShards(context.Background(), c.key(), c.user, ids, c.token)
	if err != nil {
		return err
	}
	printShardResults(results)
	return nil
}

// rollbackShardsCmd implements rollbackShards.
type rollbackShardsCmd struct {
	jobKeyFlags
	instances string
	token     string
}

func (c *rollbackShardsCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "rollback-shards", Short: "Revert a set of instances to the update session's old config"}
	c.register(cmd)
	cmd.Flags().StringVar(&c.instances, "instances", "", "comma-separated instance ids")
	cmd.Flags().StringVar(&c.token, "token", "", "update session token")
	return cmd
}

func (c *rollbackShardsCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	ids, err := parseInstances(c.instances)
	if err != nil {
		return err
	}
	results, err := cl.core.RollbackShards(context.Background(), c.key(), c.user, ids, c.token)
	if err != nil {
		return err
	}
	printShardResults(results)
	return nil
}

func printShardResults(results map[uint32]scheduler.ShardUpdateResult) {
	for id, r := range results {
		fmt.Printf("instance %d: %s\n", id, r)
	}
}

// finishUpdateCmd implements finishUpdate.
type finishUpdateCmd struct {
	jobKeyFlags
	token  string
	result string
}

func (c *finishUpdateCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "finish-update", Short: "Close an update session"}
	c.register(cmd)
	cmd.Flags().StringVar(&c.token, "token", "", "update session token (omit to finish as the session owner)")
	cmd.Flags().StringVar(&c.result, "result", "success", "one of success, failed, terminate")
	return cmd
}

func (c *finishUpdateCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	var result scheduler.UpdateResult
	switch strings.ToLower(c.result) {
	case "success":
		result = scheduler.UpdateSuccess
	case "failed":
		result = scheduler.UpdateFailed
	case "terminate":
		result = scheduler.UpdateTerminate
	default:
		return fmt.Errorf("unknown result %q", c.result)
	}
	hasToken := c.token != ""
	if err := cl.core.FinishUpdate(context.Background(), c.key(), c.user, c.token, hasToken, result); err != nil {
		return err
	}
	fmt.Println("update finished:", strings.ToLower(c.result))
	return nil
}

// setTaskStatusCmd implements setTaskStatus, the operation the
// out-of-scope executor transport would otherwise invoke on the
// scheduler's behalf as tasks progress or report back.
type setTaskStatusCmd struct {
	taskID  string
	status  string
	message string
}

func (c *setTaskStatusCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{Use: "set-task-status", Short: "Report a task's new status"}
	cmd.Flags().StringVar(&c.taskID, "task_id", "", "task id")
	cmd.Flags().StringVar(&c.status, "status", "", "new status, e.g. RUNNING, FINISHED, FAILED")
	cmd.Flags().StringVar(&c.message, "message", "", "status message")
	return cmd
}

func (c *setTaskStatusCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	status, err := parseStatus(c.status)
	if err != nil {
		return err
	}
	n, err := cl.core.SetTaskStatus(context.Background(), sched.ForTaskIDs(c.taskID), status, c.message)
	if err != nil {
		return err
	}
	fmt.Printf("updated %d task(s)\n", n)
	return nil
}
