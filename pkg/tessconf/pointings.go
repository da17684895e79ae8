package tessconf

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/tasoc/tessphot/pkg/skygeom"
)

// PointingsFile is the name of the sector-pointings file inside the input
// folder.
const PointingsFile = "pointings.yaml"

// Pointings describes, for every observing sector, when it was observed and
// where each camera/CCD was looking.
type Pointings struct {
	Sectors []SectorPointing `json:"sectors"`
}

// SectorPointing is the pointing of one observing sector.
type SectorPointing struct {
	Sector int `json:"sector"`

	// ReferenceTime is the Julian Date the catalog positions are projected
	// to, typically mid-sector.
	ReferenceTime float64 `json:"reference_time"`

	Cameras []CameraPointing `json:"cameras"`
}

// CameraPointing is the pointing of one camera/CCD combination.
type CameraPointing struct {
	Camera int `json:"camera"`
	CCD    int `json:"ccd"`

	// Centre of the camera field, degrees.
	CentreRA  float64 `json:"centre_ra"`
	CentreDec float64 `json:"centre_dec"`

	// Footprint of the CCD on the sky, (ra, dec) corners in degrees.
	Footprint [][2]float64 `json:"footprint"`
}

// LoadPointings reads and validates a pointings file. Unknown fields are
// rejected, so stale settings can not silently survive schema changes.
func LoadPointings(path string) (*Pointings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Pointings
	if err := yaml.Unmarshal(raw, &p, yaml.DisallowUnknownFields); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, s := range p.Sectors {
		if s.ReferenceTime <= 0 {
			return nil, fmt.Errorf("%s: sector %d has no reference_time", path, s.Sector)
		}
	}
	return &p, nil
}

// LoadPointings reads the pointings file from the configured input folder.
func (c Config) LoadPointings() (*Pointings, error) {
	return LoadPointings(filepath.Join(c.InputFolder, PointingsFile))
}

// Sector returns the pointing of the given sector.
func (p *Pointings) Sector(sector int) (*SectorPointing, error) {
	for i := range p.Sectors {
		if p.Sectors[i].Sector == sector {
			return &p.Sectors[i], nil
		}
	}
	return nil, fmt.Errorf("no pointing defined for sector %d", sector)
}

// Camera returns the pointing of the given camera/CCD in this sector.
func (s *SectorPointing) Camera(camera, ccd int) (*CameraPointing, error) {
	for i := range s.Cameras {
		if s.Cameras[i].Camera == camera && s.Cameras[i].CCD == ccd {
			return &s.Cameras[i], nil
		}
	}
	return nil, fmt.Errorf("sector %d: no pointing for camera=%d ccd=%d", s.Sector, camera, ccd)
}

// Epoch returns the reference time expressed as Julian years relative to
// J2000.0, the epoch catalog positions are projected to.
func (s *SectorPointing) Epoch() float64 {
	return (s.ReferenceTime - skygeom.J2000) / skygeom.DaysPerYear
}
