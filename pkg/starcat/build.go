package starcat

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/tasoc/tessphot/pkg/skygeom"
	"github.com/tasoc/tessphot/pkg/tessconf"
)

// BuildOptions selects what to build catalogs for.
type BuildOptions struct {
	Sector  int
	Cameras []int // empty means all four
	CCDs    []int // empty means all four

	// CoordBuffer is how far outside the CCD footprint, in degrees, stars
	// are still included. Targets near the edge need their neighbours.
	CoordBuffer float64

	Overwrite bool
}

// DefaultCoordBuffer is the footprint buffer used when BuildOptions leaves
// it zero.
const DefaultCoordBuffer = 0.2

func allIfEmpty(v []int) []int {
	if len(v) == 0 {
		return []int{1, 2, 3, 4}
	}
	return v
}

// Build creates the catalog files for one sector, one per camera/CCD.
// Existing files are skipped unless Overwrite is set.
func Build(ctx context.Context, conf tessconf.Config, src TICSource, pointings *tessconf.Pointings, opts BuildOptions) error {
	if err := conf.CheckInput(); err != nil {
		return err
	}
	sec, err := pointings.Sector(opts.Sector)
	if err != nil {
		return err
	}
	coordBuffer := opts.CoordBuffer
	if coordBuffer == 0 {
		coordBuffer = DefaultCoordBuffer
	}

	for _, camera := range allIfEmpty(opts.Cameras) {
		for _, ccd := range allIfEmpty(opts.CCDs) {
			if err := ctx.Err(); err != nil {
				return err
			}
			dlog.Infof(ctx, "catalog: sector=%d camera=%d ccd=%d", opts.Sector, camera, ccd)
			if err := buildOne(ctx, conf, src, sec, camera, ccd, coordBuffer, opts.Overwrite); err != nil {
				return fmt.Errorf("catalog sector=%d camera=%d ccd=%d: %w", opts.Sector, camera, ccd, err)
			}
		}
	}
	return nil
}

func buildOne(ctx context.Context, conf tessconf.Config, src TICSource, sec *tessconf.SectorPointing, camera, ccd int, coordBuffer float64, overwrite bool) error {
	path := FilePath(conf.InputFolder, sec.Sector, camera, ccd)
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			dlog.Infof(ctx, "catalog: %s already exists", path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	cam, err := sec.Camera(camera, ccd)
	if err != nil {
		return err
	}
	footprint := skygeom.BufferFootprint(cam.Footprint, coordBuffer)
	dlog.Debugf(ctx, "catalog: buffered footprint %s", EncodeFootprint(footprint))

	stars, err := src.QueryRegion(ctx, footprint)
	if err != nil {
		return err
	}
	dlog.Infof(ctx, "catalog: %d stars from TIC", len(stars))

	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB(db) }()

	if err := db.AutoMigrate(&Settings{}, &Star{}); err != nil {
		return err
	}

	if err := db.Create(&Settings{
		Sector:        sec.Sector,
		Camera:        camera,
		CCD:           ccd,
		TICVersion:    src.Version(),
		ReferenceTime: sec.ReferenceTime,
		Epoch:         sec.Epoch() + 2000.0,
		CoordBuffer:   coordBuffer,
		CentreRA:      cam.CentreRA,
		CentreDec:     cam.CentreDec,
		Footprint:     EncodeFootprint(footprint),
	}).Error; err != nil {
		return err
	}

	rows := make([]Star, 0, len(stars))
	for _, s := range stars {
		ra, decl := s.RA, s.Decl
		if s.PmRA != nil && s.PmDecl != nil {
			ra, decl = skygeom.AddProperMotion(s.RA, s.Decl, *s.PmRA, *s.PmDecl, sec.ReferenceTime)
		}
		rows = append(rows, Star{
			StarID:    s.StarID,
			RA:        ra,
			Decl:      decl,
			RAJ2000:   s.RA,
			DeclJ2000: s.Decl,
			PmRA:      s.PmRA,
			PmDecl:    s.PmDecl,
			Tmag:      s.Tmag,
			Teff:      s.Teff,
		})
	}
	if len(rows) > 0 {
		if err := db.CreateInBatches(rows, 500).Error; err != nil {
			return err
		}
	}

	// Recreate the file pages compactly; catalogs are written once and
	// read many times.
	if err := db.Exec("VACUUM").Error; err != nil {
		return err
	}
	return nil
}

// EncodeFootprint renders a footprint polygon as the flat brace-wrapped
// list stored in the settings table: "{ra1,dec1,ra2,dec2,...}".
func EncodeFootprint(footprint [][2]float64) string {
	parts := make([]string, 0, 2*len(footprint))
	for _, c := range footprint {
		parts = append(parts,
			strconv.FormatFloat(c[0], 'g', -1, 64),
			strconv.FormatFloat(c[1], 'g', -1, 64))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// DecodeFootprint parses the settings-table footprint format.
func DecodeFootprint(s string) ([][2]float64, error) {
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("footprint has odd number of values: %q", s)
	}
	out := make([][2]float64, len(parts)/2)
	for i := range out {
		var err error
		if out[i][0], err = strconv.ParseFloat(strings.TrimSpace(parts[2*i]), 64); err != nil {
			return nil, fmt.Errorf("footprint: %w", err)
		}
		if out[i][1], err = strconv.ParseFloat(strings.TrimSpace(parts[2*i+1]), 64); err != nil {
			return nil, fmt.Errorf("footprint: %w", err)
		}
	}
	return out, nil
}
