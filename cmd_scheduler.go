package main

import (
	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"

	"github.com/tasoc/tessphot/pkg/cliutil"
	"github.com/tasoc/tessphot/pkg/scheduler"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
)

func init() {
	var opts scheduler.Options
	cmd := &cobra.Command{
		Use:   "scheduler [flags]",
		Short: "Work through the whole todo list with parallel workers",
		Long: "Runs photometry for every pending task on the todo list with a " +
			"pool of workers. Idle workers pull the next task, failures are " +
			"recorded and skipped, and an interrupted run picks up where it " +
			"left off.",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			summary, err := scheduler.Run(ctx, tessconf.FromEnv(), opts)
			if err != nil {
				return err
			}
			for _, status := range []todo.Status{
				todo.StatusOK, todo.StatusWarning, todo.StatusError, todo.StatusSkipped,
			} {
				if n := summary.ByStatus[status]; n > 0 {
					dlog.Infof(ctx, "%s: %d tasks", status, n)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0,
		"Worker pool size (defaults to $"+tessconf.EnvWorkers+" or the CPU count)")
	cmd.Flags().BoolVar(&opts.RandomOrder, "random", false,
		"Process tasks in random order instead of brightest first")

	argparser.AddCommand(cmd)
}
