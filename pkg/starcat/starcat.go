// Package starcat builds and reads the per-camera/CCD star catalogs that the
// rest of the pipeline works from. Each catalog is a single SQLite file
// holding a settings row and the stars that fall on (or near) one CCD in one
// observing sector, with positions projected to the sector reference time.
package starcat

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Settings records how a catalog file was generated.
type Settings struct {
	Sector        int     `gorm:"column:sector;not null"`
	Camera        int     `gorm:"column:camera;not null"`
	CCD           int     `gorm:"column:ccd;not null"`
	TICVersion    int     `gorm:"column:ticver;not null"`
	ReferenceTime float64 `gorm:"column:reference_time;not null"`
	Epoch         float64 `gorm:"column:epoch;not null"`
	CoordBuffer   float64 `gorm:"column:coord_buffer;not null"`
	CentreRA      float64 `gorm:"column:camera_centre_ra;not null"`
	CentreDec     float64 `gorm:"column:camera_centre_dec;not null"`
	Footprint     string  `gorm:"column:footprint;not null"`
}

func (Settings) TableName() string { return "settings" }

// Star is one catalog entry. RA/Decl are at the sector reference time;
// the J2000 columns keep the un-projected catalog position.
type Star struct {
	StarID    int64    `gorm:"column:starid;primaryKey"`
	RA        float64  `gorm:"column:ra;not null;index:radec_idx"`
	Decl      float64  `gorm:"column:decl;not null;index:radec_idx"`
	RAJ2000   float64  `gorm:"column:ra_j2000;not null"`
	DeclJ2000 float64  `gorm:"column:decl_j2000;not null"`
	PmRA      *float64 `gorm:"column:pm_ra"`
	PmDecl    *float64 `gorm:"column:pm_decl"`
	Tmag      float64  `gorm:"column:tmag;not null"`
	Teff      *float64 `gorm:"column:teff"`
}

func (Star) TableName() string { return "catalog" }

// FilePath returns the canonical catalog filename for a sector/camera/CCD
// inside the given input folder.
func FilePath(inputFolder string, sector, camera, ccd int) string {
	return filepath.Join(inputFolder,
		fmt.Sprintf("catalog_sector%03d_camera%d_ccd%d.sqlite", sector, camera, ccd))
}

func openSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Catalog is a read handle on one catalog file.
type Catalog struct {
	Settings Settings

	db *gorm.DB
}

// Open opens an existing catalog file and loads its settings row.
func Open(path string) (*Catalog, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	cat := &Catalog{db: db}
	if err := db.First(&cat.Settings).Error; err != nil {
		_ = closeDB(db)
		return nil, fmt.Errorf("%s: load settings: %w", path, err)
	}
	return cat, nil
}

// OpenFor opens the catalog covering the given sector/camera/CCD in the
// input folder.
func OpenFor(inputFolder string, sector, camera, ccd int) (*Catalog, error) {
	return Open(FilePath(inputFolder, sector, camera, ccd))
}

func (c *Catalog) Close() error { return closeDB(c.db) }

// Star looks up a single star by its TIC identifier. Returns
// gorm.ErrRecordNotFound when the star is not in this catalog.
func (c *Catalog) Star(starid int64) (*Star, error) {
	var s Star
	if err := c.db.Where("starid = ?", starid).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// BrighterThan returns all stars brighter than the given magnitude limit,
// brightest first.
func (c *Catalog) BrighterThan(tmagLimit float64) ([]Star, error) {
	var stars []Star
	err := c.db.Where("tmag < ?", tmagLimit).Order("tmag").Find(&stars).Error
	return stars, err
}

// StarsInBox returns the stars inside a coordinate box, optionally limited
// to those brighter than tmagLimit (<=0 means no limit). The box query does
// not handle footprints crossing ra=0; callers near the wrap need to query
// both sides themselves.
func (c *Catalog) StarsInBox(raMin, raMax, declMin, declMax, tmagLimit float64) ([]Star, error) {
	q := c.db.Where("ra BETWEEN ? AND ? AND decl BETWEEN ? AND ?", raMin, raMax, declMin, declMax)
	if tmagLimit > 0 {
		q = q.Where("tmag < ?", tmagLimit)
	}
	var stars []Star
	err := q.Order("tmag").Find(&stars).Error
	return stars, err
}
