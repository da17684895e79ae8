package todo

import "fmt"

// Status is the processing state of a task, as recorded in the todo list.
type Status int

// The numeric values are stored in todo.sqlite and must stay stable.
const (
	StatusUnknown Status = 0
	StatusOK      Status = 1
	StatusError   Status = 2
	StatusWarning Status = 3
	StatusAbort   Status = 4
	StatusSkipped Status = 5
	StatusStarted Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusWarning:
		return "WARNING"
	case StatusAbort:
		return "ABORT"
	case StatusSkipped:
		return "SKIPPED"
	case StatusStarted:
		return "STARTED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Final reports whether the status is a terminal outcome (as opposed to
// pending or in-flight).
func (s Status) Final() bool {
	switch s {
	case StatusOK, StatusError, StatusWarning, StatusSkipped:
		return true
	default:
		return false
	}
}
