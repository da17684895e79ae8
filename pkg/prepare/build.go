package prepare

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tasoc/tessphot/pkg/tessconf"
)

// BuildOptions selects what the prepare step assembles.
type BuildOptions struct {
	Camera    int // 0 means all
	CCD       int // 0 means all
	Overwrite bool
}

// Build scans the input folder for FFI files and assembles one image-stack
// database per (sector, camera, ccd) found. Combinations run in parallel,
// bounded by conf.Workers.
func Build(ctx context.Context, conf tessconf.Config, opts BuildOptions) error {
	if err := conf.CheckInput(); err != nil {
		return err
	}

	files, err := FindFFIFiles(conf.InputFolder, FFIFilters{Camera: opts.Camera, CCD: opts.CCD})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no FFI files found in %s", conf.InputFolder)
	}
	dlog.Infof(ctx, "prepare: %d FFI files", len(files))

	// Group by (sector, camera, ccd):
	groups := make(map[[3]int][]string)
	for _, path := range files {
		m := ffiNameRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		sector, _ := strconv.Atoi(m[1])
		camera, _ := strconv.Atoi(m[2])
		ccd, _ := strconv.Atoi(m[3])
		key := [3]int{sector, camera, ccd}
		groups[key] = append(groups[key], path)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(1, conf.Workers))
	for key, paths := range groups {
		key, paths := key, paths
		grp.Go(func() error {
			err := buildStack(ctx, conf, key[0], key[1], key[2], paths, opts.Overwrite)
			if err != nil {
				return fmt.Errorf("stack sector=%d camera=%d ccd=%d: %w", key[0], key[1], key[2], err)
			}
			return nil
		})
	}
	return grp.Wait()
}

func buildStack(ctx context.Context, conf tessconf.Config, sector, camera, ccd int, paths []string, overwrite bool) error {
	out := StackPath(conf.InputFolder, sector, camera, ccd)
	if _, err := os.Stat(out); err == nil {
		if !overwrite {
			dlog.Infof(ctx, "prepare: %s already exists", out)
			return nil
		}
		if err := os.Remove(out); err != nil {
			return err
		}
	}

	type loaded struct {
		time    float64
		cadence int64
		pixels  []float64
	}
	var frames []loaded
	var settings *StackSettings

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		ffi, err := ReadFFI(path)
		if err != nil {
			return err
		}
		if settings == nil {
			projJSON, err := json.Marshal(ffi.Projection)
			if err != nil {
				return err
			}
			settings = &StackSettings{
				Sector:     sector,
				Camera:     camera,
				CCD:        ccd,
				Rows:       ffi.Shape[0],
				Cols:       ffi.Shape[1],
				OffsetRows: ffi.OffsetRows,
				OffsetCols: ffi.OffsetCols,
				Projection: string(projJSON),
			}
		} else if settings.Rows != ffi.Shape[0] || settings.Cols != ffi.Shape[1] {
			return fmt.Errorf("%s: shape %dx%d does not match stack %dx%d",
				path, ffi.Shape[0], ffi.Shape[1], settings.Rows, settings.Cols)
		}
		frames = append(frames, loaded{time: ffi.Time, cadence: ffi.Cadence, pixels: ffi.Pixels})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].time < frames[j].time })
	settings.NumFrames = len(frames)

	db, err := gorm.Open(sqlite.Open(out), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", out, err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := db.AutoMigrate(&StackSettings{}, &StackFrame{}); err != nil {
		return err
	}
	if err := db.Create(settings).Error; err != nil {
		return err
	}
	rows := make([]StackFrame, len(frames))
	for i, f := range frames {
		rows[i] = StackFrame{Index: i, Time: f.time, Cadence: f.cadence, Pixels: encodePixels(f.pixels)}
	}
	if err := db.CreateInBatches(rows, 50).Error; err != nil {
		return err
	}

	dlog.Infof(ctx, "prepare: wrote %s (%d frames)", out, len(frames))
	return nil
}
