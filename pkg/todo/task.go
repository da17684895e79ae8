// Package todo creates and manages the todo list the pipeline works
// through: which targets to process, in which order, with which method, and
// what happened to each.
package todo

import (
	"path/filepath"
	"time"
)

// FileName is the name of the todo-list database inside the input folder.
const FileName = "todo.sqlite"

// FilePath returns the todo-list path for an input folder.
func FilePath(inputFolder string) string {
	return filepath.Join(inputFolder, FileName)
}

// Datasource values. Secondary targets found inside another target's stamp
// use "tpf:<primary starid>".
const (
	SourceFFI = "ffi"
	SourceTPF = "tpf"
)

// Task is one row of the todo list.
type Task struct {
	// Priority orders the work, 1-based, brightest targets first.
	Priority int64 `gorm:"column:priority;primaryKey;autoIncrement:false"`

	StarID     int64   `gorm:"column:starid;not null;index:starid_idx;index:starid_datasource_idx"`
	Sector     int     `gorm:"column:sector;not null"`
	Datasource string  `gorm:"column:datasource;not null;default:ffi;index:starid_datasource_idx"`
	Camera     int     `gorm:"column:camera;not null"`
	CCD        int     `gorm:"column:ccd;not null"`
	Method     *string `gorm:"column:method"`
	Tmag       float64 `gorm:"column:tmag"`
	Status     *Status `gorm:"column:status;index:status_idx"`
	CBVArea    int     `gorm:"column:cbv_area;not null"`
}

func (Task) TableName() string { return "todolist" }

// Diagnostic records what processing a task produced, one row per completed
// task.
type Diagnostic struct {
	Priority      int64    `gorm:"column:priority;primaryKey;autoIncrement:false"`
	ElapsedTime   float64  `gorm:"column:elaptime;not null"` // seconds
	ErrorText     *string  `gorm:"column:errors"`
	Contamination *float64 `gorm:"column:contamination"`
}

func (Diagnostic) TableName() string { return "diagnostics" }

// Result is what a finished task reports back for saving.
type Result struct {
	Priority      int64
	StarID        int64
	Status        Status
	Elapsed       time.Duration
	ErrorText     string
	Contamination *float64
}
