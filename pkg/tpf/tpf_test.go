package tpf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasoc/tessphot/pkg/skygeom"
	"github.com/tasoc/tessphot/pkg/testutil"
	"github.com/tasoc/tessphot/pkg/tpf"
)

func testFile(starid int64, sector int) *tpf.File {
	return &tpf.File{
		StarID:    starid,
		Sector:    sector,
		Camera:    1,
		CCD:       2,
		Shape:     [2]int{3, 3},
		CornerRow: 100,
		CornerCol: 200,
		Time:      []float64{2458339.0, 2458339.5},
		Cadence:   []int64{1, 2},
		Flux: [][]float64{
			{0, 0, 0, 0, 10, 0, 0, 0, 0},
			{0, 0, 0, 0, 11, 0, 0, 0, 0},
		},
		Projection: skygeom.NewProjection(30, 0, 1, 1, 21.0/3600),
	}
}

func TestReadWriteRoundtrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := tpf.Write(dir, testFile(12345, 1))
	require.NoError(t, err)

	got, err := tpf.Read(path)
	require.NoError(t, err)
	testutil.AssertEqual(t, testFile(12345, 1), got)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	f := testFile(1, 1)
	require.NoError(t, f.Validate())

	f.Flux[0] = f.Flux[0][:5]
	assert.Error(t, f.Validate())

	f = testFile(1, 1)
	f.Cadence = f.Cadence[:1]
	assert.Error(t, f.Validate())

	f = testFile(0, 1)
	assert.Error(t, f.Validate())
}

func TestFind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, spec := range []struct {
		starid int64
		sector int
	}{{111, 1}, {111, 2}, {222, 1}} {
		_, err := tpf.Write(dir, testFile(spec.starid, spec.sector))
		require.NoError(t, err)
	}

	all, err := tpf.Find(dir)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := tpf.FindStar(dir, 111)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := tpf.FindStar(dir, 333)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFootprint(t *testing.T) {
	t.Parallel()
	f := testFile(1, 1)
	fp := f.Footprint()
	require.Len(t, fp, 4)

	// All corners are within a stamp diagonal of the projection centre:
	for _, c := range fp {
		d := skygeom.SphereDistance(c[0], c[1], 30, 0)
		assert.Less(t, d, 3*21.0/3600*3)
	}
}
