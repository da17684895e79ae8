// Package prepare collects raw full-frame images into the per-camera/CCD
// image-stack databases the photometry reads frames from. One stack database
// replaces thousands of single-exposure files with a single ordered,
// seekable store.
package prepare

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

// FFIImage is one calibrated full-frame exposure as delivered to the input
// folder, a JSON file per exposure.
type FFIImage struct {
	Sector  int   `json:"sector"`
	Camera  int   `json:"camera"`
	CCD     int   `json:"ccd"`
	Cadence int64 `json:"cadence"`

	// Time is the mid-exposure Julian Date.
	Time float64 `json:"time"`

	// Shape is {rows, cols}; Pixels is row-major, len rows*cols.
	Shape  [2]int    `json:"shape"`
	Pixels []float64 `json:"pixels"`

	// Projection maps full-CCD pixel coordinates to the sky.
	Projection skygeom.Projection `json:"projection"`

	// Pixel offsets of the science area within the full CCD readout.
	OffsetRows int `json:"offset_rows"`
	OffsetCols int `json:"offset_cols"`
}

var ffiNameRe = regexp.MustCompile(`^ffi_sector(\d{3})_camera(\d)_ccd(\d)_.*\.json$`)

// FFIFilters restricts which FFI files a scan returns. Zero values match
// everything.
type FFIFilters struct {
	Sector int
	Camera int
	CCD    int
}

func (f FFIFilters) match(sector, camera, ccd int) bool {
	return (f.Sector == 0 || f.Sector == sector) &&
		(f.Camera == 0 || f.Camera == camera) &&
		(f.CCD == 0 || f.CCD == ccd)
}

// FindFFIFiles returns the FFI files in a directory matching the filters,
// sorted by name (and therefore by cadence within one camera/CCD).
func FindFFIFiles(dir string, filters FFIFilters) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		m := ffiNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		sector, _ := strconv.Atoi(m[1])
		camera, _ := strconv.Atoi(m[2])
		ccd, _ := strconv.Atoi(m[3])
		if filters.match(sector, camera, ccd) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadFFI reads and validates one FFI file.
func ReadFFI(path string) (*FFIImage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ffi FFIImage
	if err := json.Unmarshal(raw, &ffi); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if got, want := len(ffi.Pixels), ffi.Shape[0]*ffi.Shape[1]; got != want {
		return nil, fmt.Errorf("%s: %d pixels for shape %dx%d", path, got, ffi.Shape[0], ffi.Shape[1])
	}
	return &ffi, nil
}

// WriteFFI writes an FFI file with the canonical name into dir and returns
// the path. Used by simulators and tests.
func WriteFFI(dir string, ffi *FFIImage) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("ffi_sector%03d_camera%d_ccd%d_%08d.json",
		ffi.Sector, ffi.Camera, ffi.CCD, ffi.Cadence))
	raw, err := json.Marshal(ffi)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, raw, 0o666); err != nil {
		return "", err
	}
	return path, nil
}
