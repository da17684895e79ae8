// Package tpf reads the target-pixel files delivered for short-cadence
// targets: a small pixel stamp cut out around one star, with one frame per
// cadence and a projection tied to the stamp.
package tpf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/tasoc/tessphot/pkg/skygeom"
)

// File is one target-pixel file.
type File struct {
	StarID int64 `json:"starid"`
	Sector int   `json:"sector"`
	Camera int   `json:"camera"`
	CCD    int   `json:"ccd"`

	// Shape is {rows, cols} of the stamp.
	Shape [2]int `json:"shape"`

	// CornerRow/CornerCol locate stamp pixel (0,0) on the full CCD.
	CornerRow int `json:"corner_row"`
	CornerCol int `json:"corner_col"`

	// Per-cadence mid-exposure Julian Dates and cadence numbers.
	Time    []float64 `json:"time"`
	Cadence []int64   `json:"cadence"`

	// Flux holds one row-major frame per cadence.
	Flux [][]float64 `json:"flux"`

	// Projection maps stamp pixel coordinates to the sky.
	Projection skygeom.Projection `json:"projection"`
}

// Validate checks the internal consistency of a file.
func (f *File) Validate() error {
	if f.StarID <= 0 {
		return fmt.Errorf("tpf: missing starid")
	}
	n := len(f.Time)
	if len(f.Cadence) != n || len(f.Flux) != n {
		return fmt.Errorf("tpf %d: %d times, %d cadences, %d frames",
			f.StarID, n, len(f.Cadence), len(f.Flux))
	}
	want := f.Shape[0] * f.Shape[1]
	for i, frame := range f.Flux {
		if len(frame) != want {
			return fmt.Errorf("tpf %d: frame %d has %d pixels for shape %dx%d",
				f.StarID, i, len(frame), f.Shape[0], f.Shape[1])
		}
	}
	return nil
}

// Footprint returns the sky polygon covered by the stamp.
func (f *File) Footprint() [][2]float64 {
	return f.Projection.Footprint(f.Shape[0], f.Shape[1])
}

var tpfNameRe = regexp.MustCompile(`^tic(\d{11})_sector(\d{3})\.tpf\.json$`)

// FileName returns the canonical name of a target-pixel file.
func FileName(starid int64, sector int) string {
	return fmt.Sprintf("tic%011d_sector%03d.tpf.json", starid, sector)
}

// Find returns all target-pixel files in a directory, sorted by name.
func Find(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if tpfNameRe.MatchString(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// FindStar returns the target-pixel files for one star, across sectors.
func FindStar(dir string, starid int64) ([]string, error) {
	all, err := Find(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, path := range all {
		m := tpfNameRe.FindStringSubmatch(filepath.Base(path))
		if id, _ := strconv.ParseInt(m[1], 10, 64); id == starid {
			out = append(out, path)
		}
	}
	return out, nil
}

// Read reads and validates one target-pixel file.
func Read(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Write writes a target-pixel file with the canonical name into dir and
// returns the path. Used by simulators and tests.
func Write(dir string, f *File) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(f.StarID, f.Sector))
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, raw, 0o666); err != nil {
		return "", err
	}
	return path, nil
}
