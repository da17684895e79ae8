package todo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tasoc/tessphot/pkg/prepare"
	"github.com/tasoc/tessphot/pkg/skygeom"
	"github.com/tasoc/tessphot/pkg/starcat"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/tpf"
)

// FaintLimit is the magnitude limit for targets picked up from full-frame
// images and for secondary targets inside stamps.
const FaintLimit = 15.0

// BuildOptions selects what the todo builder scans.
type BuildOptions struct {
	Cameras []int // empty means all four
	CCDs    []int // empty means all four

	// FindSecondaryTargets also lists the other catalog stars that fall
	// inside each target-pixel stamp.
	FindSecondaryTargets bool

	// ExcludeFile and MethodsFile override the default data-file paths.
	ExcludeFile string
	MethodsFile string

	Overwrite bool
}

func contains(set []int, v int) bool {
	if len(set) == 0 {
		return v >= 1 && v <= 4
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// CBVArea returns the cotrending-basis-vector area code of a position:
// camera*100 + ccd*10 + a 1..4 ring index by distance from the camera
// centre, where the camera radius is the distance to the furthest corner of
// the 24x24 degree field.
func CBVArea(ra, decl float64, set *starcat.Settings) int {
	cameraRadius := math.Sqrt(12*12 + 12*12)
	dist := skygeom.SphereDistance(ra, decl, set.CentreRA, set.CentreDec)

	area := set.Camera*100 + set.CCD*10
	switch {
	case dist < 0.25*cameraRadius:
		area++
	case dist < 0.5*cameraRadius:
		area += 2
	case dist < 0.75*cameraRadius:
		area += 3
	default:
		area += 4
	}
	return area
}

// Build scans the input folder and writes todo.sqlite. An existing todo
// list is left alone unless Overwrite is set.
func Build(ctx context.Context, conf tessconf.Config, opts BuildOptions) error {
	if err := conf.CheckInput(); err != nil {
		return err
	}

	todoFile := FilePath(conf.InputFolder)
	if _, err := os.Stat(todoFile); err == nil {
		if !opts.Overwrite {
			dlog.Infof(ctx, "todo: %s already exists", todoFile)
			return nil
		}
		if err := os.Remove(todoFile); err != nil {
			return err
		}
	}

	excludeFile := opts.ExcludeFile
	if excludeFile == "" {
		excludeFile = filepath.Join(conf.InputFolder, ExcludeFileName)
	}
	excludes, err := loadExcludes(excludeFile)
	if err != nil {
		return err
	}
	methodsFile := opts.MethodsFile
	if methodsFile == "" {
		methodsFile = filepath.Join(conf.InputFolder, MethodsFileName)
	}
	methods, err := loadMethods(methodsFile)
	if err != nil {
		return err
	}

	tasks, err := scanTPFs(ctx, conf, opts, excludes)
	if err != nil {
		return err
	}
	dlog.Infof(ctx, "todo: %d targets from target-pixel files", len(tasks))

	ffiTasks, err := scanStacks(ctx, conf, opts)
	if err != nil {
		return err
	}
	dlog.Infof(ctx, "todo: %d targets from image stacks", len(ffiTasks))
	tasks = append(tasks, ffiTasks...)

	tasks = dropSecondaryDuplicates(tasks)
	tasks = dedupe(tasks)
	tasks = applyExcludes(tasks, excludes)

	if len(tasks) == 0 {
		return fmt.Errorf("todo: no targets found in %s", conf.InputFolder)
	}

	for i := range tasks {
		if m, ok := methods[sourceKey{tasks[i].StarID, tasks[i].Sector, tasks[i].Datasource}]; ok {
			m := m
			tasks[i].Method = &m
		}
	}

	// Brightest first; the stable sort keeps the scan order for equal
	// magnitudes so priorities are reproducible.
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Tmag < tasks[j].Tmag })
	for i := range tasks {
		tasks[i].Priority = int64(i + 1)
	}

	return WriteFile(ctx, todoFile, tasks)
}

// scanTPFs lists the primary (and optionally secondary) targets of every
// target-pixel file, fanning out over a bounded worker pool.
func scanTPFs(ctx context.Context, conf tessconf.Config, opts BuildOptions, excludes excludeSet) ([]Task, error) {
	files, err := tpf.Find(conf.InputFolder)
	if err != nil {
		return nil, err
	}
	dlog.Infof(ctx, "todo: %d target-pixel files", len(files))

	var mu sync.Mutex
	var tasks []Task

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(1, conf.Workers))
	for _, path := range files {
		path := path
		grp.Go(func() error {
			found, err := tpfTargets(ctx, conf, opts, excludes, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			tasks = append(tasks, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func tpfTargets(ctx context.Context, conf tessconf.Config, opts BuildOptions, excludes excludeSet, path string) ([]Task, error) {
	f, err := tpf.Read(path)
	if err != nil {
		return nil, err
	}
	if !contains(opts.Cameras, f.Camera) || !contains(opts.CCDs, f.CCD) {
		return nil, nil
	}
	if excludes.excluded(f.StarID, f.Sector, SourceTPF) {
		dlog.Debugf(ctx, "todo: target excluded: starid=%d sector=%d source=tpf", f.StarID, f.Sector)
		return nil, nil
	}

	cat, err := starcat.OpenFor(conf.InputFolder, f.Sector, f.Camera, f.CCD)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cat.Close() }()

	star, err := cat.Star(f.StarID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		dlog.Warnf(ctx, "todo: starid %d not in catalog (camera=%d, ccd=%d)", f.StarID, f.Camera, f.CCD)
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	tasks := []Task{{
		StarID:     f.StarID,
		Sector:     f.Sector,
		Camera:     f.Camera,
		CCD:        f.CCD,
		Datasource: SourceTPF,
		Tmag:       star.Tmag,
		CBVArea:    CBVArea(star.RA, star.Decl, &cat.Settings),
	}}

	if !opts.FindSecondaryTargets {
		return tasks, nil
	}

	// Everything else in the catalog that falls on the stamp rides along
	// as a secondary target, tagged with the stamp it lives in.
	raMin, raMax := math.Inf(1), math.Inf(-1)
	declMin, declMax := math.Inf(1), math.Inf(-1)
	for _, c := range f.Footprint() {
		raMin, raMax = math.Min(raMin, c[0]), math.Max(raMax, c[0])
		declMin, declMax = math.Min(declMin, c[1]), math.Max(declMax, c[1])
	}
	// NOTE: a stamp footprint crossing ra=0 will miss targets here.
	neighbours, err := cat.StarsInBox(raMin, raMax, declMin, declMax, FaintLimit)
	if err != nil {
		return nil, err
	}
	for _, n := range neighbours {
		if n.StarID == f.StarID {
			continue
		}
		col, row, ok := f.Projection.SkyToPixel(n.RA, n.Decl)
		if !ok || !onSilicon(col, row, f.Shape[0], f.Shape[1]) {
			continue
		}
		dlog.Debugf(ctx, "todo: adding secondary target tic %d in stamp of %d", n.StarID, f.StarID)
		tasks = append(tasks, Task{
			StarID:     n.StarID,
			Sector:     f.Sector,
			Camera:     f.Camera,
			CCD:        f.CCD,
			Datasource: fmt.Sprintf("%s:%d", SourceTPF, f.StarID),
			Tmag:       n.Tmag,
			// Secondaries share the stamp, so they share the primary's
			// cotrending area.
			CBVArea: tasks[0].CBVArea,
		})
	}
	return tasks, nil
}

// scanStacks lists every catalog star bright enough and on silicon for each
// prepared image stack.
func scanStacks(ctx context.Context, conf tessconf.Config, opts BuildOptions) ([]Task, error) {
	stackFiles, err := prepare.FindStackFiles(conf.InputFolder, prepare.FFIFilters{})
	if err != nil {
		return nil, err
	}

	var tasks []Task
	var errs derror.MultiError
	for _, path := range stackFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sector, camera, ccd, _ := prepare.ParseStackPath(path)
		if !contains(opts.Cameras, camera) || !contains(opts.CCDs, ccd) {
			continue
		}
		found, err := stackTargets(ctx, conf, path, sector, camera, ccd)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		tasks = append(tasks, found...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return tasks, nil
}

func stackTargets(ctx context.Context, conf tessconf.Config, path string, sector, camera, ccd int) ([]Task, error) {
	stack, err := prepare.OpenStack(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stack.Close() }()

	cat, err := starcat.OpenFor(conf.InputFolder, sector, camera, ccd)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cat.Close() }()

	stars, err := cat.BrighterThan(FaintLimit)
	if err != nil {
		return nil, err
	}

	proj := stack.Projection()
	var tasks []Task
	for _, star := range stars {
		col, row, ok := proj.SkyToPixel(star.RA, star.Decl)
		if !ok {
			continue
		}
		col -= float64(stack.Settings.OffsetCols)
		row -= float64(stack.Settings.OffsetRows)
		if !onSilicon(col, row, stack.Settings.Rows, stack.Settings.Cols) {
			continue
		}
		tasks = append(tasks, Task{
			StarID:     star.StarID,
			Sector:     sector,
			Camera:     camera,
			CCD:        ccd,
			Datasource: SourceFFI,
			Tmag:       star.Tmag,
			CBVArea:    CBVArea(star.RA, star.Decl, &cat.Settings),
		})
	}
	dlog.Debugf(ctx, "todo: %d of %d catalog stars on silicon in %s", len(tasks), len(stars), path)
	return tasks, nil
}

// onSilicon reports whether a position is on the image. The 0.5s are because
// pixel centers are at integers.
func onSilicon(col, row float64, rows, cols int) bool {
	return col >= -0.5 && row >= -0.5 &&
		col <= float64(cols)-0.5 && row <= float64(rows)-0.5
}

// dropSecondaryDuplicates removes secondary stamp targets that are also a
// primary target of their own stamp.
func dropSecondaryDuplicates(tasks []Task) []Task {
	primaries := make(map[[2]int64]bool)
	for _, t := range tasks {
		if t.Datasource == SourceTPF {
			primaries[[2]int64{t.StarID, int64(t.Sector)}] = true
		}
	}
	out := tasks[:0]
	for _, t := range tasks {
		if strings.HasPrefix(t.Datasource, SourceTPF+":") &&
			primaries[[2]int64{t.StarID, int64(t.Sector)}] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dedupe(tasks []Task) []Task {
	type key struct {
		starid     int64
		sector     int
		camera     int
		ccd        int
		datasource string
	}
	seen := make(map[key]bool, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		k := key{t.StarID, t.Sector, t.Camera, t.CCD, t.Datasource}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func applyExcludes(tasks []Task, excludes excludeSet) []Task {
	out := tasks[:0]
	for _, t := range tasks {
		if excludes.excluded(t.StarID, t.Sector, t.Datasource) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// WriteFile creates a todo-list database at path with the given tasks.
// Simulated inputs use this too.
func WriteFile(ctx context.Context, path string, tasks []Task) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := db.AutoMigrate(&Task{}, &Diagnostic{}); err != nil {
		return err
	}
	if err := db.CreateInBatches(tasks, 500).Error; err != nil {
		return err
	}

	// Recreate the underlying pages compactly before the file is handed
	// to the scheduler.
	if err := db.Exec("VACUUM").Error; err != nil {
		return err
	}

	dlog.Infof(ctx, "todo: wrote %s with %d tasks", path, len(tasks))
	return nil
}
