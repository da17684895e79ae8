package todo

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNoMoreTasks is returned by NextTask and RandomTask when every task has
// a status.
var ErrNoMoreTasks = errors.New("no tasks left in todo list")

// TaskManager hands out work from a todo list and records what came back.
// It is not safe for concurrent use; the scheduler funnels all calls through
// the single master goroutine, matching how the todo file is meant to be
// owned.
type TaskManager struct {
	db *gorm.DB
}

// OpenTaskManager opens the todo list in the given input folder. Tasks left
// STARTED or ABORT by an earlier interrupted run are put back in the queue.
func OpenTaskManager(inputFolder string) (*TaskManager, error) {
	path := FilePath(inputFolder)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("todo list: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	tm := &TaskManager{db: db}
	err = db.Model(&Task{}).
		Where("status IN ?", []Status{StatusStarted, StatusAbort}).
		Update("status", nil).Error
	if err != nil {
		_ = tm.Close()
		return nil, err
	}
	return tm, nil
}

func (tm *TaskManager) Close() error {
	sqlDB, err := tm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NumTasks returns how many tasks still have no status.
func (tm *TaskManager) NumTasks() (int64, error) {
	var n int64
	err := tm.db.Model(&Task{}).Where("status IS NULL").Count(&n).Error
	return n, err
}

// NextTask returns the highest-priority pending task, or ErrNoMoreTasks.
func (tm *TaskManager) NextTask() (*Task, error) {
	var t Task
	err := tm.db.Where("status IS NULL").Order("priority").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoMoreTasks
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RandomTask returns a random pending task, or ErrNoMoreTasks.
func (tm *TaskManager) RandomTask() (*Task, error) {
	var t Task
	err := tm.db.Where("status IS NULL").Order("RANDOM()").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoMoreTasks
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Task returns the pending task for a specific star, preferring the
// brightest datasource row.
func (tm *TaskManager) Task(starid int64) (*Task, error) {
	var t Task
	err := tm.db.Where("status IS NULL AND starid = ?", starid).Order("priority").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoMoreTasks
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StartTask marks a task as handed out.
func (tm *TaskManager) StartTask(priority int64) error {
	return tm.setStatus(priority, StatusStarted)
}

func (tm *TaskManager) setStatus(priority int64, status Status) error {
	res := tm.db.Model(&Task{}).Where("priority = ?", priority).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no task with priority %d", priority)
	}
	return nil
}

// SaveResult records the outcome of a task: the status on the todo list and
// a diagnostics row with timing and details.
func (tm *TaskManager) SaveResult(res *Result) error {
	return tm.db.Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&Task{}).Where("priority = ?", res.Priority).Update("status", res.Status)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("no task with priority %d", res.Priority)
		}

		diag := Diagnostic{
			Priority:      res.Priority,
			ElapsedTime:   res.Elapsed.Seconds(),
			Contamination: res.Contamination,
		}
		if res.ErrorText != "" {
			diag.ErrorText = &res.ErrorText
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&diag).Error
	})
}

// Diagnostic returns the saved diagnostics row for a priority, if any.
func (tm *TaskManager) Diagnostic(priority int64) (*Diagnostic, error) {
	var d Diagnostic
	if err := tm.db.Where("priority = ?", priority).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}
