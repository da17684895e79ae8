// Package tessconf holds the process-level configuration of the photometry
// pipeline: where input products live, where output goes, and the per-sector
// pointing settings.
package tessconf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Environment variables understood by every pipeline stage.
const (
	EnvInput   = "TESSPHOT_INPUT"
	EnvOutput  = "TESSPHOT_OUTPUT"
	EnvWorkers = "TESSPHOT_WORKERS"
	EnvTICDB   = "TESSPHOT_TICDB"
)

// Config is the resolved process configuration.
type Config struct {
	// InputFolder is where catalogs, image stacks, target-pixel files and
	// the todo list live.
	InputFolder string

	// OutputFolder is where lightcurves are written.
	OutputFolder string

	// Workers is the parallelism used by the todo builder, the prepare
	// step, and the scheduler default.
	Workers int

	// TICDSN, when set, is the connection string of the central TESS Input
	// Catalog mirror used by the catalog builder.
	TICDSN string
}

// FromEnv resolves the configuration from the environment. The input folder
// defaults to ./tests/input and the output folder to the current directory,
// so that a bare invocation in a source checkout does something sensible.
func FromEnv() Config {
	cfg := Config{
		InputFolder:  os.Getenv(EnvInput),
		OutputFolder: os.Getenv(EnvOutput),
		Workers:      runtime.GOMAXPROCS(0),
		TICDSN:       os.Getenv(EnvTICDB),
	}
	if cfg.InputFolder == "" {
		cfg.InputFolder = filepath.Join("tests", "input")
	}
	if cfg.OutputFolder == "" {
		cfg.OutputFolder = "."
	}
	if s := os.Getenv(EnvWorkers); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	return cfg
}

// CheckInput verifies that the input folder exists and is a directory.
func (c Config) CheckInput() error {
	fi, err := os.Stat(c.InputFolder)
	if err != nil {
		return fmt.Errorf("input folder: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("input folder %q is not a directory", c.InputFolder)
	}
	return nil
}
