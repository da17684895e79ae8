// Package scheduler works through a todo list with a pool of photometry
// workers. A single manager goroutine owns the todo list and hands out
// tasks one at a time; idle workers pull the next task, so fast workers
// naturally take more of the load.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/tasoc/tessphot/pkg/phot"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
)

// ProcessFunc performs the photometry for one task.
type ProcessFunc func(ctx context.Context, conf tessconf.Config, task *todo.Task) *todo.Result

// Options tunes a scheduler run.
type Options struct {
	// Workers is the pool size; zero falls back to the configured
	// worker count.
	Workers int

	// RandomOrder picks pending tasks at random instead of by priority.
	RandomOrder bool

	// Process replaces the photometry itself. Nil means phot.Run.
	Process ProcessFunc
}

// Summary counts what a run did per final status.
type Summary struct {
	Total    int64
	ByStatus map[todo.Status]int
}

// Run processes every pending task in the todo list and returns the tally.
// A failing task is recorded on the todo list and does not stop the run;
// cancelling the context does, leaving interrupted tasks to be picked up
// again by the next run.
func Run(ctx context.Context, conf tessconf.Config, opts Options) (*Summary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = conf.Workers
	}
	workers = max(1, workers)
	process := opts.Process
	if process == nil {
		process = phot.Run
	}

	tm, err := todo.OpenTaskManager(conf.InputFolder)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tm.Close() }()

	total, err := tm.NumTasks()
	if err != nil {
		return nil, err
	}
	dlog.Infof(ctx, "scheduler: %d pending tasks, %d workers", total, workers)
	summary := &Summary{Total: total, ByStatus: make(map[todo.Status]int)}
	if total == 0 {
		return summary, nil
	}

	tasks := make(chan *todo.Task)
	results := make(chan *todo.Result)

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{})

	grp.Go("manager", func(ctx context.Context) error {
		defer close(tasks)
		var next *todo.Task
		pending := 0
		exhausted := false
		done := int64(0)
		for {
			if next == nil && !exhausted {
				t, err := nextTask(tm, opts.RandomOrder)
				switch {
				case errors.Is(err, todo.ErrNoMoreTasks):
					exhausted = true
				case err != nil:
					return err
				default:
					if err := tm.StartTask(t.Priority); err != nil {
						return err
					}
					next = t
				}
			}
			if exhausted && pending == 0 {
				return nil
			}

			// Only offer the tasks channel while a task is in hand.
			var out chan *todo.Task
			if next != nil {
				out = tasks
			}
			select {
			case out <- next:
				pending++
				next = nil
			case res := <-results:
				pending--
				done++
				if err := tm.SaveResult(res); err != nil {
					return err
				}
				summary.ByStatus[res.Status]++
				dlog.Infof(ctx, "scheduler: tic %d finished with %s in %.2fs (%d/%d)",
					res.StarID, res.Status, res.Elapsed.Seconds(), done, total)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	for i := 0; i < workers; i++ {
		grp.Go(fmt.Sprintf("worker-%d", i), func(ctx context.Context) error {
			for {
				select {
				case task, ok := <-tasks:
					if !ok {
						return nil
					}
					res := process(ctx, conf, task)
					select {
					case results <- res:
					case <-ctx.Done():
						return ctx.Err()
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	if err := grp.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

func nextTask(tm *todo.TaskManager, random bool) (*todo.Task, error) {
	if random {
		return tm.RandomTask()
	}
	return tm.NextTask()
}
