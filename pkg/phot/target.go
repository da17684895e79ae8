package phot

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/tasoc/tessphot/pkg/prepare"
	"github.com/tasoc/tessphot/pkg/skygeom"
	"github.com/tasoc/tessphot/pkg/starcat"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
	"github.com/tasoc/tessphot/pkg/tpf"
)

// StampStar is a catalog star positioned on the stamp. Row/Col are at the
// sector reference time; AtTime moves stars with known proper motion.
type StampStar struct {
	StarID    int64
	Tmag      float64
	RAJ2000   float64
	DeclJ2000 float64
	PmRA      *float64
	PmDecl    *float64
	Row, Col  float64
}

// Target is everything photometry needs for one task: the stamp pixels over
// time, the catalog stars on the stamp, and the PSF model.
type Target struct {
	Task   todo.Task
	StarID int64

	Rows, Cols int
	Images     []Image
	Times      []float64
	Cadences   []int64

	// Catalog stars on (or near) the stamp; TargetIndex points at the
	// target itself.
	Catalog     []StampStar
	TargetIndex int

	PSF *PSF

	proj    skygeom.Projection
	refTime float64
}

// sourceStarID returns whose pixel data a task reads: the task's own star,
// or for secondary stamp targets the primary star of the stamp.
func sourceStarID(task *todo.Task) (int64, error) {
	if rest, ok := strings.CutPrefix(task.Datasource, todo.SourceTPF+":"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad datasource %q: %w", task.Datasource, err)
		}
		return id, nil
	}
	return task.StarID, nil
}

// LoadTarget assembles the stamp for a task, either straight from a
// target-pixel file or cut out of the prepared image stack.
func LoadTarget(ctx context.Context, conf tessconf.Config, task *todo.Task) (*Target, error) {
	switch {
	case task.Datasource == todo.SourceFFI:
		return loadFromStack(ctx, conf, task)
	case task.Datasource == todo.SourceTPF,
		strings.HasPrefix(task.Datasource, todo.SourceTPF+":"):
		return loadFromTPF(ctx, conf, task)
	default:
		return nil, fmt.Errorf("unknown datasource %q", task.Datasource)
	}
}

func loadFromTPF(ctx context.Context, conf tessconf.Config, task *todo.Task) (*Target, error) {
	primary, err := sourceStarID(task)
	if err != nil {
		return nil, err
	}
	f, err := tpf.Read(filepath.Join(conf.InputFolder, tpf.FileName(primary, task.Sector)))
	if err != nil {
		return nil, err
	}

	t := &Target{
		Task:   *task,
		StarID: task.StarID,
		Rows:   f.Shape[0],
		Cols:   f.Shape[1],
		Times:  f.Time,
		PSF:    NewPSF(task.Camera, task.CCD),
		proj:   f.Projection,
	}
	t.Cadences = f.Cadence
	t.Images = make([]Image, len(f.Flux))
	for i, frame := range f.Flux {
		t.Images[i] = Image{Rows: t.Rows, Cols: t.Cols, Pix: frame}
	}

	if err := t.loadStampCatalog(ctx, conf); err != nil {
		return nil, err
	}
	return t, nil
}

// stampSize picks the FFI cutout size from the target brightness: brighter
// stars spread light further.
func stampSize(tmag float64) int {
	n := int(32 - 2*tmag)
	n = max(11, min(27, n))
	return n | 1 // keep it odd so the target sits on a central pixel
}

func loadFromStack(ctx context.Context, conf tessconf.Config, task *todo.Task) (*Target, error) {
	stack, err := prepare.OpenStack(prepare.StackPath(conf.InputFolder, task.Sector, task.Camera, task.CCD))
	if err != nil {
		return nil, err
	}
	defer func() { _ = stack.Close() }()

	cat, err := starcat.OpenFor(conf.InputFolder, task.Sector, task.Camera, task.CCD)
	if err != nil {
		return nil, err
	}
	star, err := cat.Star(task.StarID)
	_ = cat.Close()
	if err != nil {
		return nil, fmt.Errorf("starid %d: %w", task.StarID, err)
	}

	set := stack.Settings
	fullCol, fullRow, ok := stack.Projection().SkyToPixel(star.RA, star.Decl)
	if !ok {
		return nil, fmt.Errorf("starid %d does not project onto camera=%d ccd=%d", task.StarID, task.Camera, task.CCD)
	}
	col := fullCol - float64(set.OffsetCols)
	row := fullRow - float64(set.OffsetRows)

	n := stampSize(star.Tmag)
	cornerRow := int(math.Round(row)) - n/2
	cornerCol := int(math.Round(col)) - n/2
	cornerRow = max(0, min(set.Rows-n, cornerRow))
	cornerCol = max(0, min(set.Cols-n, cornerCol))
	dlog.Debugf(ctx, "phot: stamp %dx%d at corner (%d,%d) for tic %d", n, n, cornerRow, cornerCol, task.StarID)

	times, err := stack.Times()
	if err != nil {
		return nil, err
	}

	t := &Target{
		Task:   *task,
		StarID: task.StarID,
		Rows:   n,
		Cols:   n,
		Times:  times,
		PSF:    NewPSF(task.Camera, task.CCD),
		proj: stack.Projection().Shift(
			float64(set.OffsetCols+cornerCol),
			float64(set.OffsetRows+cornerRow)),
	}
	t.Cadences = make([]int64, len(times))
	for i := range times {
		t.Cadences[i] = int64(i)
	}

	t.Images = make([]Image, stack.NumFrames())
	for i := 0; i < stack.NumFrames(); i++ {
		pix, err := stack.Frame(i)
		if err != nil {
			return nil, err
		}
		full := Image{Rows: set.Rows, Cols: set.Cols, Pix: pix}
		stamp := NewImage(n, n)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				stamp.Set(r, c, full.At(cornerRow+r, cornerCol+c))
			}
		}
		t.Images[i] = stamp
	}

	if err := t.loadStampCatalog(ctx, conf); err != nil {
		return nil, err
	}
	return t, nil
}

// loadStampCatalog fills Catalog with every catalog star inside the stamp
// footprint (with a one-pixel margin), positioned on the stamp.
func (t *Target) loadStampCatalog(ctx context.Context, conf tessconf.Config) error {
	cat, err := starcat.OpenFor(conf.InputFolder, t.Task.Sector, t.Task.Camera, t.Task.CCD)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()
	t.refTime = cat.Settings.ReferenceTime

	raMin, raMax := math.Inf(1), math.Inf(-1)
	declMin, declMax := math.Inf(1), math.Inf(-1)
	for _, c := range t.proj.Footprint(t.Rows+2, t.Cols+2) {
		raMin, raMax = math.Min(raMin, c[0]), math.Max(raMax, c[0])
		declMin, declMax = math.Min(declMin, c[1]), math.Max(declMax, c[1])
	}
	stars, err := cat.StarsInBox(raMin, raMax, declMin, declMax, 0)
	if err != nil {
		return err
	}

	t.TargetIndex = -1
	for _, s := range stars {
		col, row, ok := t.proj.SkyToPixel(s.RA, s.Decl)
		if !ok {
			continue
		}
		if s.StarID == t.StarID {
			t.TargetIndex = len(t.Catalog)
		}
		t.Catalog = append(t.Catalog, StampStar{
			StarID:    s.StarID,
			Tmag:      s.Tmag,
			RAJ2000:   s.RAJ2000,
			DeclJ2000: s.DeclJ2000,
			PmRA:      s.PmRA,
			PmDecl:    s.PmDecl,
			Row:       row,
			Col:       col,
		})
	}
	if t.TargetIndex < 0 {
		return fmt.Errorf("starid %d not found in stamp catalog", t.StarID)
	}
	dlog.Debugf(ctx, "phot: %d catalog stars on stamp of tic %d", len(t.Catalog), t.StarID)
	return nil
}

// CatalogAtTime returns the stamp catalog with stars moved by their proper
// motion to the given Julian Date. Stars without proper motion keep their
// reference-time position.
func (t *Target) CatalogAtTime(jd float64) []StampStar {
	out := make([]StampStar, len(t.Catalog))
	copy(out, t.Catalog)
	for i := range out {
		if out[i].PmRA == nil || out[i].PmDecl == nil {
			continue
		}
		ra, decl := skygeom.AddProperMotion(out[i].RAJ2000, out[i].DeclJ2000,
			*out[i].PmRA, *out[i].PmDecl, jd)
		if col, row, ok := t.proj.SkyToPixel(ra, decl); ok {
			out[i].Row, out[i].Col = row, col
		}
	}
	return out
}

// Position returns the target's stamp position at the reference time.
func (t *Target) Position() (row, col float64) {
	s := t.Catalog[t.TargetIndex]
	return s.Row, s.Col
}
