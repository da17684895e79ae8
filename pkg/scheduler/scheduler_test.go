package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasoc/tessphot/pkg/scheduler"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
)

func writeTodoList(t *testing.T, n int) tessconf.Config {
	t.Helper()
	conf := tessconf.Config{
		InputFolder:  t.TempDir(),
		OutputFolder: t.TempDir(),
		Workers:      3,
	}
	ctx := dlog.NewTestContext(t, false)

	tasks := make([]todo.Task, n)
	for i := range tasks {
		tasks[i] = todo.Task{
			Priority:   int64(i + 1),
			StarID:     int64(1000 + i),
			Sector:     1,
			Datasource: todo.SourceFFI,
			Camera:     1,
			CCD:        1,
			Tmag:       10 + float64(i),
			CBVArea:    111,
		}
	}
	require.NoError(t, todo.WriteFile(ctx, todo.FilePath(conf.InputFolder), tasks))
	return conf
}

func TestRunProcessesEveryTask(t *testing.T) {
	conf := writeTodoList(t, 20)
	ctx := dlog.NewTestContext(t, false)

	var mu sync.Mutex
	seen := map[int64]int{}
	process := func(ctx context.Context, conf tessconf.Config, task *todo.Task) *todo.Result {
		mu.Lock()
		seen[task.Priority]++
		mu.Unlock()
		status := todo.StatusOK
		if task.Priority%5 == 0 {
			status = todo.StatusError
		}
		return &todo.Result{
			Priority: task.Priority,
			StarID:   task.StarID,
			Status:   status,
			Elapsed:  time.Millisecond,
		}
	}

	summary, err := scheduler.Run(ctx, conf, scheduler.Options{Process: process})
	require.NoError(t, err)
	assert.Equal(t, int64(20), summary.Total)
	assert.Equal(t, 16, summary.ByStatus[todo.StatusOK])
	assert.Equal(t, 4, summary.ByStatus[todo.StatusError])

	// Every task was handed out exactly once:
	assert.Len(t, seen, 20)
	for priority, count := range seen {
		assert.Equal(t, 1, count, "priority %d", priority)
	}

	// All results landed on the todo list:
	tm, err := todo.OpenTaskManager(conf.InputFolder)
	require.NoError(t, err)
	defer func() { assert.NoError(t, tm.Close()) }()
	left, err := tm.NumTasks()
	require.NoError(t, err)
	assert.Zero(t, left)

	d, err := tm.Diagnostic(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, d.ElapsedTime, 1e-9)
}

func TestRunOneFailureDoesNotStopTheRun(t *testing.T) {
	conf := writeTodoList(t, 6)
	ctx := dlog.NewTestContext(t, false)

	process := func(ctx context.Context, conf tessconf.Config, task *todo.Task) *todo.Result {
		res := &todo.Result{Priority: task.Priority, StarID: task.StarID, Status: todo.StatusOK}
		if task.Priority == 2 {
			res.Status = todo.StatusError
			res.ErrorText = "synthetic failure"
		}
		return res
	}
	summary, err := scheduler.Run(ctx, conf, scheduler.Options{Workers: 1, Process: process})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.ByStatus[todo.StatusOK])
	assert.Equal(t, 1, summary.ByStatus[todo.StatusError])

	tm, err := todo.OpenTaskManager(conf.InputFolder)
	require.NoError(t, err)
	defer func() { assert.NoError(t, tm.Close()) }()
	d, err := tm.Diagnostic(2)
	require.NoError(t, err)
	require.NotNil(t, d.ErrorText)
	assert.Equal(t, "synthetic failure", *d.ErrorText)
}

func TestRunCancellation(t *testing.T) {
	conf := writeTodoList(t, 50)
	ctx, cancel := context.WithCancel(dlog.NewTestContext(t, false))

	var once sync.Once
	process := func(ctx context.Context, conf tessconf.Config, task *todo.Task) *todo.Result {
		once.Do(cancel)
		<-ctx.Done()
		return &todo.Result{Priority: task.Priority, StarID: task.StarID, Status: todo.StatusAbort}
	}
	_, err := scheduler.Run(ctx, conf, scheduler.Options{Workers: 2, Process: process})
	assert.Error(t, err)

	// Interrupted tasks go back in the queue on the next open:
	tm, err := todo.OpenTaskManager(conf.InputFolder)
	require.NoError(t, err)
	defer func() { assert.NoError(t, tm.Close()) }()
	left, err := tm.NumTasks()
	require.NoError(t, err)
	assert.Equal(t, int64(50), left)
}

func TestRunEmptyTodoList(t *testing.T) {
	conf := writeTodoList(t, 3)
	ctx := dlog.NewTestContext(t, false)

	process := func(ctx context.Context, conf tessconf.Config, task *todo.Task) *todo.Result {
		return &todo.Result{Priority: task.Priority, StarID: task.StarID, Status: todo.StatusSkipped}
	}
	_, err := scheduler.Run(ctx, conf, scheduler.Options{Process: process})
	require.NoError(t, err)

	// Nothing pending on the second pass:
	summary, err := scheduler.Run(ctx, conf, scheduler.Options{Process: process})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.ByStatus)
}
