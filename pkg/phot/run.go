package phot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
)

// Photometry method names, as stored in the todo-list.
const (
	MethodAperture = "aperture"
	MethodLinPSF   = "linpsf"
)

// methodFor picks the photometry method for a task: an explicit override
// wins, otherwise pixel files get aperture photometry and full-frame stacks
// get the linear PSF fit.
func methodFor(task *todo.Task) string {
	if task.Method != nil && *task.Method != "" {
		return *task.Method
	}
	if task.Datasource == todo.SourceTPF || strings.HasPrefix(task.Datasource, todo.SourceTPF+":") {
		return MethodAperture
	}
	return MethodLinPSF
}

// Run performs photometry for a single task and returns its result. It never
// returns an error; failures are reported through the result status so that
// one bad target cannot take down a whole processing run.
func Run(ctx context.Context, conf tessconf.Config, task *todo.Task) (res *todo.Result) {
	began := time.Now()
	res = &todo.Result{
		Priority: task.Priority,
		StarID:   task.StarID,
		Status:   todo.StatusError,
	}
	defer func() {
		res.Elapsed = time.Since(began)
		if r := recover(); r != nil {
			res.Status = todo.StatusError
			res.ErrorText = fmt.Sprintf("photometry panicked: %v", r)
			dlog.Errorf(ctx, "phot: %s", res.ErrorText)
		}
	}()

	method := methodFor(task)
	dlog.Infof(ctx, "phot: running %s photometry for tic %d (priority %d)", method, task.StarID, task.Priority)

	target, err := LoadTarget(ctx, conf, task)
	if err != nil {
		res.ErrorText = fmt.Sprintf("loading target: %v", err)
		return res
	}

	lc := newLightcurve(target, method)
	var status todo.Status
	var detail string
	switch method {
	case MethodAperture:
		status, detail = target.Aperture(ctx, lc)
	case MethodLinPSF:
		status, detail, res.Contamination = target.LinPSF(ctx, lc)
	default:
		res.ErrorText = fmt.Sprintf("unknown photometry method %q", method)
		return res
	}
	res.Status = status
	res.ErrorText = detail
	if status == todo.StatusError {
		return res
	}

	path, err := lc.Write(conf.OutputFolder)
	if err != nil {
		res.Status = todo.StatusError
		res.ErrorText = fmt.Sprintf("writing lightcurve: %v", err)
		return res
	}
	dlog.Debugf(ctx, "phot: wrote %s", path)
	return res
}
