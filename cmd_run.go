package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"

	"github.com/tasoc/tessphot/pkg/cliutil"
	"github.com/tasoc/tessphot/pkg/phot"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
)

func init() {
	var argMethod string
	var argRandom, argAll bool
	cmd := &cobra.Command{
		Use:   "run [flags] [STARID]",
		Short: "Run photometry for single targets in this process",
		Long: "Processes one pending task from the todo list: the given star, a " +
			"random one, or with --all every pending task in priority order. " +
			"Results are recorded on the todo list just as the scheduler would.",
		Args: cliutil.WrapPositionalArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conf := tessconf.FromEnv()

			selectors := 0
			for _, on := range []bool{len(args) > 0, argRandom, argAll} {
				if on {
					selectors++
				}
			}
			if selectors != 1 {
				return errors.New("specify exactly one of STARID, --random or --all")
			}

			tm, err := todo.OpenTaskManager(conf.InputFolder)
			if err != nil {
				return err
			}
			defer func() { _ = tm.Close() }()

			pick := func() (*todo.Task, error) {
				switch {
				case argRandom:
					return tm.RandomTask()
				case argAll:
					return tm.NextTask()
				default:
					starid, err := strconv.ParseInt(args[0], 10, 64)
					if err != nil {
						return nil, fmt.Errorf("bad starid %q: %w", args[0], err)
					}
					return tm.Task(starid)
				}
			}

			for {
				task, err := pick()
				if errors.Is(err, todo.ErrNoMoreTasks) && argAll {
					return nil
				}
				if err != nil {
					return err
				}
				if argMethod != "" {
					method := argMethod
					task.Method = &method
				}
				if err := tm.StartTask(task.Priority); err != nil {
					return err
				}

				res := phot.Run(ctx, conf, task)
				if err := tm.SaveResult(res); err != nil {
					return err
				}
				dlog.Infof(ctx, "tic %d finished with %s in %.2fs",
					res.StarID, res.Status, res.Elapsed.Seconds())
				if res.Status == todo.StatusError && !argAll {
					return fmt.Errorf("photometry failed: %s", res.ErrorText)
				}
				if !argAll {
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVarP(&argMethod, "method", "m", "", "Override the photometric `METHOD` (aperture or linpsf)")
	cmd.Flags().BoolVarP(&argRandom, "random", "r", false, "Process a random pending task")
	cmd.Flags().BoolVarP(&argAll, "all", "a", false, "Process every pending task, one after the other")

	argparser.AddCommand(cmd)
}
