package phot_test

import (
	"path/filepath"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasoc/tessphot/pkg/phot"
	"github.com/tasoc/tessphot/pkg/skygeom"
	"github.com/tasoc/tessphot/pkg/starcat"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
	"github.com/tasoc/tessphot/pkg/tpf"
)

const (
	refTime    = 2458339.5
	plateScale = 21.0 / 3600 // degrees per pixel

	primaryID   = 42
	secondaryID = 43
)

// buildPhotFixture sets up a minimal sector: a catalog with two stars and
// one target-pixel file with both stars injected through the PSF model.
func buildPhotFixture(t *testing.T) tessconf.Config {
	t.Helper()
	conf := tessconf.Config{
		InputFolder:  t.TempDir(),
		OutputFolder: t.TempDir(),
		Workers:      1,
	}
	ctx := dlog.NewTestContext(t, false)

	pointings := &tessconf.Pointings{
		Sectors: []tessconf.SectorPointing{{
			Sector:        1,
			ReferenceTime: refTime,
			Cameras: []tessconf.CameraPointing{{
				Camera:    1,
				CCD:       1,
				CentreRA:  30,
				CentreDec: 0,
				Footprint: [][2]float64{{24, -6}, {36, -6}, {36, 6}, {24, 6}},
			}},
		}},
	}
	src := &starcat.MemorySource{
		Ver: 8,
		Stars: []starcat.TICStar{
			{StarID: primaryID, RA: 30, Decl: 0, Tmag: 9},
			// Four pixels off in column:
			{StarID: secondaryID, RA: 30 + 4*plateScale, Decl: 0, Tmag: 12},
		},
	}
	err := starcat.Build(ctx, conf, src, pointings, starcat.BuildOptions{
		Sector: 1, Cameras: []int{1}, CCDs: []int{1},
	})
	require.NoError(t, err)

	// An 11x11 stamp centered on the primary, five cadences:
	proj := skygeom.NewProjection(30, 0, 5, 5, plateScale)
	psf := phot.NewPSF(1, 1)
	stars := []phot.PSFStar{
		{Row: 5, Col: 5, Flux: phot.MagToFlux(9)},
		{Row: 5, Col: 9, Flux: phot.MagToFlux(12)},
	}

	f := &tpf.File{
		StarID:     primaryID,
		Sector:     1,
		Camera:     1,
		CCD:        1,
		Shape:      [2]int{11, 11},
		Projection: proj,
	}
	for k := 0; k < 5; k++ {
		f.Time = append(f.Time, refTime+0.02*float64(k))
		f.Cadence = append(f.Cadence, int64(1000+k))
		f.Flux = append(f.Flux, psf.Integrate(stars, 11, 11, 10).Pix)
	}
	_, err = tpf.Write(conf.InputFolder, f)
	require.NoError(t, err)

	return conf
}

func primaryTask() *todo.Task {
	return &todo.Task{
		Priority:   1,
		StarID:     primaryID,
		Sector:     1,
		Datasource: todo.SourceTPF,
		Camera:     1,
		CCD:        1,
		Tmag:       9,
	}
}

func TestRunAperture(t *testing.T) {
	conf := buildPhotFixture(t)
	ctx := dlog.NewTestContext(t, false)

	res := phot.Run(ctx, conf, primaryTask())
	require.Equal(t, todo.StatusOK, res.Status, "error: %s", res.ErrorText)
	assert.Equal(t, int64(primaryID), res.StarID)
	assert.Greater(t, res.Elapsed.Seconds(), 0.0)

	lc, err := phot.ReadLightcurve(filepath.Join(conf.OutputFolder,
		"tic00000000042_sector001_aperture_lc.json"))
	require.NoError(t, err)
	assert.Equal(t, phot.MethodAperture, lc.Method)
	require.Len(t, lc.Flux, 5)

	total := phot.MagToFlux(9)
	for k, flux := range lc.Flux {
		assert.Zero(t, lc.Quality[k])
		// The aperture catches most of the target flux, never more:
		assert.Greater(t, flux, 0.3*total)
		assert.Less(t, flux, 1.01*total)
		assert.InDelta(t, 5.0, lc.CentroidRow[k], 0.1)
		assert.InDelta(t, 5.0, lc.CentroidCol[k], 0.1)
	}
}

func TestRunLinPSF(t *testing.T) {
	conf := buildPhotFixture(t)
	ctx := dlog.NewTestContext(t, false)

	task := primaryTask()
	method := phot.MethodLinPSF
	task.Method = &method

	res := phot.Run(ctx, conf, task)
	require.Equal(t, todo.StatusOK, res.Status, "error: %s", res.ErrorText)
	require.NotNil(t, res.Contamination)
	// The neighbour is faint and four pixels away:
	assert.Less(t, *res.Contamination, 0.05)

	lc, err := phot.ReadLightcurve(filepath.Join(conf.OutputFolder,
		"tic00000000042_sector001_linpsf_lc.json"))
	require.NoError(t, err)
	require.Len(t, lc.Flux, 5)

	// The fit recovers the injected flux:
	for k, flux := range lc.Flux {
		assert.Zero(t, lc.Quality[k])
		assert.InEpsilon(t, phot.MagToFlux(9), flux, 0.02)
	}
}

func TestRunSecondaryTarget(t *testing.T) {
	conf := buildPhotFixture(t)
	ctx := dlog.NewTestContext(t, false)

	// The secondary reads its pixels from the primary's stamp:
	task := &todo.Task{
		Priority:   2,
		StarID:     secondaryID,
		Sector:     1,
		Datasource: "tpf:42",
		Camera:     1,
		CCD:        1,
		Tmag:       12,
	}
	res := phot.Run(ctx, conf, task)
	require.Equal(t, todo.StatusOK, res.Status, "error: %s", res.ErrorText)

	lc, err := phot.ReadLightcurve(filepath.Join(conf.OutputFolder,
		"tic00000000043_sector001_aperture_lc.json"))
	require.NoError(t, err)
	for _, flux := range lc.Flux {
		assert.Greater(t, flux, 0.0)
	}
}

func TestRunFailures(t *testing.T) {
	conf := buildPhotFixture(t)
	ctx := dlog.NewTestContext(t, false)

	// A method nobody implements:
	task := primaryTask()
	method := "sorcery"
	task.Method = &method
	res := phot.Run(ctx, conf, task)
	assert.Equal(t, todo.StatusError, res.Status)
	assert.Contains(t, res.ErrorText, "unknown photometry method")

	// A star with no pixel data:
	task = primaryTask()
	task.StarID = 999999
	task.Datasource = todo.SourceTPF
	res = phot.Run(ctx, conf, task)
	assert.Equal(t, todo.StatusError, res.Status)
	assert.Contains(t, res.ErrorText, "loading target")
}
