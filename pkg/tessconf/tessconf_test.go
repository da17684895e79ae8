package tessconf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasoc/tessphot/pkg/tessconf"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(tessconf.EnvInput, "/data/input")
	t.Setenv(tessconf.EnvOutput, "/data/output")
	t.Setenv(tessconf.EnvWorkers, "3")

	cfg := tessconf.FromEnv()
	assert.Equal(t, "/data/input", cfg.InputFolder)
	assert.Equal(t, "/data/output", cfg.OutputFolder)
	assert.Equal(t, 3, cfg.Workers)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(tessconf.EnvInput, "")
	t.Setenv(tessconf.EnvOutput, "")
	t.Setenv(tessconf.EnvWorkers, "not-a-number")

	cfg := tessconf.FromEnv()
	assert.Equal(t, filepath.Join("tests", "input"), cfg.InputFolder)
	assert.Equal(t, ".", cfg.OutputFolder)
	assert.Greater(t, cfg.Workers, 0)
}

const pointingsYAML = `
sectors:
  - sector: 1
    reference_time: 2458339.5
    cameras:
      - camera: 1
        ccd: 1
        centre_ra: 324.57
        centre_dec: -33.17
        footprint:
          - [318.0, -27.0]
          - [331.0, -27.0]
          - [331.0, -39.0]
          - [318.0, -39.0]
`

func writePointings(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, tessconf.PointingsFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o666))
	return path
}

func TestLoadPointings(t *testing.T) {
	t.Parallel()
	p, err := tessconf.LoadPointings(writePointings(t, pointingsYAML))
	require.NoError(t, err)

	sec, err := p.Sector(1)
	require.NoError(t, err)
	assert.InDelta(t, 18.60, sec.Epoch(), 0.01)

	cam, err := sec.Camera(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 324.57, cam.CentreRA)
	assert.Len(t, cam.Footprint, 4)

	_, err = p.Sector(99)
	assert.Error(t, err)
	_, err = sec.Camera(4, 4)
	assert.Error(t, err)
}

func TestLoadPointingsRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := tessconf.LoadPointings(writePointings(t, `
sectors:
  - sector: 1
    reference_time: 2458339.5
    wat: true
`))
	assert.Error(t, err)
}

func TestLoadPointingsMissingReferenceTime(t *testing.T) {
	t.Parallel()
	_, err := tessconf.LoadPointings(writePointings(t, `
sectors:
  - sector: 2
`))
	assert.Error(t, err)
}
