package starcat_test

import (
	"os"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tasoc/tessphot/pkg/starcat"
	"github.com/tasoc/tessphot/pkg/tessconf"
)

func ptr(v float64) *float64 { return &v }

func testPointings() *tessconf.Pointings {
	return &tessconf.Pointings{
		Sectors: []tessconf.SectorPointing{{
			Sector:        1,
			ReferenceTime: 2458339.5,
			Cameras: []tessconf.CameraPointing{{
				Camera:    1,
				CCD:       1,
				CentreRA:  30,
				CentreDec: 0,
				Footprint: [][2]float64{{24, -6}, {36, -6}, {36, 6}, {24, 6}},
			}},
		}},
	}
}

func testSource() *starcat.MemorySource {
	return &starcat.MemorySource{
		Ver: 8,
		Stars: []starcat.TICStar{
			{StarID: 1001, RA: 30, Decl: 0, Tmag: 8.5,
				PmRA: ptr(100.0), PmDecl: ptr(-50.0), Teff: ptr(5777.0)},
			{StarID: 1002, RA: 31.5, Decl: 2.25, Tmag: 12.0},
			{StarID: 1003, RA: 28, Decl: -4, Tmag: 14.9},
			// Far outside the footprint; must not be selected:
			{StarID: 2001, RA: 200, Decl: 40, Tmag: 5.0},
		},
	}
}

func buildTestCatalog(t *testing.T) tessconf.Config {
	t.Helper()
	conf := tessconf.Config{InputFolder: t.TempDir(), Workers: 1}
	ctx := dlog.NewTestContext(t, false)

	err := starcat.Build(ctx, conf, testSource(), testPointings(), starcat.BuildOptions{
		Sector:  1,
		Cameras: []int{1},
		CCDs:    []int{1},
	})
	require.NoError(t, err)
	return conf
}

func TestBuildAndOpen(t *testing.T) {
	conf := buildTestCatalog(t)

	cat, err := starcat.OpenFor(conf.InputFolder, 1, 1, 1)
	require.NoError(t, err)
	defer func() { assert.NoError(t, cat.Close()) }()

	assert.Equal(t, 1, cat.Settings.Sector)
	assert.Equal(t, 8, cat.Settings.TICVersion)
	assert.Equal(t, starcat.DefaultCoordBuffer, cat.Settings.CoordBuffer)
	assert.InDelta(t, 2018.60, cat.Settings.Epoch, 0.01)

	fp, err := starcat.DecodeFootprint(cat.Settings.Footprint)
	require.NoError(t, err)
	assert.Len(t, fp, 4)

	stars, err := cat.BrighterThan(15)
	require.NoError(t, err)
	require.Len(t, stars, 3)
	// Brightest first:
	assert.Equal(t, int64(1001), stars[0].StarID)

	// Proper motion was applied; the J2000 position is preserved:
	assert.Equal(t, 30.0, stars[0].RAJ2000)
	assert.NotEqual(t, stars[0].RA, stars[0].RAJ2000)
	// ~18.6 years of 100 mas/yr is well under an arcminute:
	assert.InDelta(t, 30.0, stars[0].RA, 1.0/60)

	// Star without proper motion passes through unchanged:
	s1002, err := cat.Star(1002)
	require.NoError(t, err)
	assert.Equal(t, s1002.RA, s1002.RAJ2000)
}

func TestStarLookups(t *testing.T) {
	conf := buildTestCatalog(t)

	cat, err := starcat.OpenFor(conf.InputFolder, 1, 1, 1)
	require.NoError(t, err)
	defer func() { assert.NoError(t, cat.Close()) }()

	_, err = cat.Star(999999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stars, err := cat.StarsInBox(29, 33, -1, 3, 15)
	require.NoError(t, err)
	require.Len(t, stars, 2)

	stars, err = cat.StarsInBox(29, 33, -1, 3, 10)
	require.NoError(t, err)
	require.Len(t, stars, 1)
	assert.Equal(t, int64(1001), stars[0].StarID)
}

func TestBuildSkipsExisting(t *testing.T) {
	conf := buildTestCatalog(t)
	ctx := dlog.NewTestContext(t, false)
	path := starcat.FilePath(conf.InputFolder, 1, 1, 1)

	before, err := os.Stat(path)
	require.NoError(t, err)

	// Second build without overwrite leaves the file alone:
	err = starcat.Build(ctx, conf, testSource(), testPointings(), starcat.BuildOptions{
		Sector: 1, Cameras: []int{1}, CCDs: []int{1},
	})
	require.NoError(t, err)
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	// With overwrite it is rebuilt:
	err = starcat.Build(ctx, conf, testSource(), testPointings(), starcat.BuildOptions{
		Sector: 1, Cameras: []int{1}, CCDs: []int{1}, Overwrite: true,
	})
	require.NoError(t, err)
}

func TestBuildUnknownPointing(t *testing.T) {
	conf := tessconf.Config{InputFolder: t.TempDir()}
	ctx := dlog.NewTestContext(t, false)

	err := starcat.Build(ctx, conf, testSource(), testPointings(), starcat.BuildOptions{Sector: 42})
	assert.Error(t, err)

	err = starcat.Build(ctx, conf, testSource(), testPointings(), starcat.BuildOptions{
		Sector: 1, Cameras: []int{2}, CCDs: []int{1},
	})
	assert.Error(t, err)
}

func TestFootprintRoundtrip(t *testing.T) {
	t.Parallel()
	fp := [][2]float64{{1.25, -2.5}, {3, 4}, {5.0625, -6}}
	got, err := starcat.DecodeFootprint(starcat.EncodeFootprint(fp))
	require.NoError(t, err)
	assert.Equal(t, fp, got)

	_, err = starcat.DecodeFootprint("{1,2,3}")
	assert.Error(t, err)
}
