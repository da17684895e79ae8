package phot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Lightcurve is the extracted flux series of one target.
type Lightcurve struct {
	StarID int64  `json:"starid"`
	Sector int    `json:"sector"`
	Camera int    `json:"camera"`
	CCD    int    `json:"ccd"`
	Method string `json:"method"`

	Time        []float64 `json:"time"`
	Cadence     []int64   `json:"cadence"`
	Flux        []float64 `json:"flux"`
	CentroidRow []float64 `json:"centroid_row"`
	CentroidCol []float64 `json:"centroid_col"`

	// Quality is zero for good cadences; bit 0 marks a failed fit.
	Quality []int `json:"quality"`
}

func newLightcurve(t *Target, method string) *Lightcurve {
	n := len(t.Times)
	lc := &Lightcurve{
		StarID:      t.StarID,
		Sector:      t.Task.Sector,
		Camera:      t.Task.Camera,
		CCD:         t.Task.CCD,
		Method:      method,
		Time:        t.Times,
		Cadence:     t.Cadences,
		Flux:        make([]float64, n),
		CentroidRow: make([]float64, n),
		CentroidCol: make([]float64, n),
		Quality:     make([]int, n),
	}
	for i := 0; i < n; i++ {
		lc.Flux[i] = math.NaN()
		lc.CentroidRow[i] = math.NaN()
		lc.CentroidCol[i] = math.NaN()
	}
	return lc
}

// allNaN reports whether no cadence produced a flux value.
func (lc *Lightcurve) allNaN() bool {
	for _, f := range lc.Flux {
		if !math.IsNaN(f) {
			return false
		}
	}
	return true
}

// FileName returns the canonical lightcurve filename for this target.
func (lc *Lightcurve) FileName() string {
	return fmt.Sprintf("tic%011d_sector%03d_%s_lc.json", lc.StarID, lc.Sector, lc.Method)
}

// Write stores the lightcurve in the given output folder and returns the
// path. NaNs are JSON-encoded as nulls.
func (lc *Lightcurve) Write(outputFolder string) (string, error) {
	if err := os.MkdirAll(outputFolder, 0o777); err != nil {
		return "", err
	}
	path := filepath.Join(outputFolder, lc.FileName())

	// encoding/json rejects NaN; swap in a nullable view of the float
	// slices.
	type alias Lightcurve
	out := struct {
		*alias
		Flux        []*float64 `json:"flux"`
		CentroidRow []*float64 `json:"centroid_row"`
		CentroidCol []*float64 `json:"centroid_col"`
	}{
		alias:       (*alias)(lc),
		Flux:        nullable(lc.Flux),
		CentroidRow: nullable(lc.CentroidRow),
		CentroidCol: nullable(lc.CentroidCol),
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, raw, 0o666)
}

// ReadLightcurve loads a lightcurve written by Write, mapping nulls back to
// NaN.
func ReadLightcurve(path string) (*Lightcurve, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in struct {
		Lightcurve
		Flux        []*float64 `json:"flux"`
		CentroidRow []*float64 `json:"centroid_row"`
		CentroidCol []*float64 `json:"centroid_col"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lc := in.Lightcurve
	lc.Flux = denullable(in.Flux)
	lc.CentroidRow = denullable(in.CentroidRow)
	lc.CentroidCol = denullable(in.CentroidCol)
	return &lc, nil
}

func nullable(x []float64) []*float64 {
	out := make([]*float64, len(x))
	for i := range x {
		if !math.IsNaN(x[i]) {
			v := x[i]
			out[i] = &v
		}
	}
	return out
}

func denullable(x []*float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if x[i] == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *x[i]
		}
	}
	return out
}
