package starcat

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TICStar is a raw row from the TESS Input Catalog, positions at J2000.
type TICStar struct {
	StarID int64    `gorm:"column:starid"`
	RA     float64  `gorm:"column:ra"`
	Decl   float64  `gorm:"column:decl"`
	PmRA   *float64 `gorm:"column:pm_ra"`
	PmDecl *float64 `gorm:"column:pm_decl"`
	Tmag   float64  `gorm:"column:tmag"`
	Teff   *float64 `gorm:"column:teff"`
}

// TICSource is where the catalog builder gets its stars from. The production
// implementation talks to the central TIC mirror; tests use MemorySource.
type TICSource interface {
	// QueryRegion returns every catalog star inside the given sky polygon
	// (ra, dec corners in degrees).
	QueryRegion(ctx context.Context, footprint [][2]float64) ([]TICStar, error)

	// Version reports the TIC release the source serves.
	Version() int
}

// PostgresSource queries a TIC mirror over a Postgres connection.
type PostgresSource struct {
	db      *gorm.DB
	version int
}

// NewPostgresSource connects to the TIC mirror at the given DSN.
func NewPostgresSource(dsn string) (*PostgresSource, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect tic mirror: %w", err)
	}

	src := &PostgresSource{db: db}
	if err := db.Raw("SELECT MAX(version) FROM tic").Scan(&src.version).Error; err != nil {
		_ = closeDB(db)
		return nil, fmt.Errorf("tic version: %w", err)
	}
	return src, nil
}

func (s *PostgresSource) Close() error { return closeDB(s.db) }

func (s *PostgresSource) Version() int { return s.version }

// QueryRegion selects stars inside the bounding box of the footprint. The
// mirror is indexed on (ra, decl); the box is a slight over-selection of the
// polygon, which is fine since positions are re-checked against the CCD when
// the todo list is built.
func (s *PostgresSource) QueryRegion(ctx context.Context, footprint [][2]float64) ([]TICStar, error) {
	raMin, raMax, declMin, declMax := boundingBox(footprint)

	var stars []TICStar
	err := s.db.WithContext(ctx).
		Raw(`SELECT starid, ra, decl, pm_ra, pm_decl, tmag, teff
		       FROM tic
		      WHERE ra BETWEEN ? AND ? AND decl BETWEEN ? AND ?
		        AND disposition IS NULL`,
			raMin, raMax, declMin, declMax).
		Scan(&stars).Error
	if err != nil {
		return nil, fmt.Errorf("query tic region: %w", err)
	}
	return stars, nil
}

// MemorySource is a TICSource backed by a slice, for tests and small
// simulated inputs.
type MemorySource struct {
	Stars []TICStar
	Ver   int
}

func (m *MemorySource) Version() int {
	if m.Ver == 0 {
		return 7
	}
	return m.Ver
}

func (m *MemorySource) QueryRegion(_ context.Context, footprint [][2]float64) ([]TICStar, error) {
	raMin, raMax, declMin, declMax := boundingBox(footprint)
	var out []TICStar
	for _, s := range m.Stars {
		if s.RA >= raMin && s.RA <= raMax && s.Decl >= declMin && s.Decl <= declMax {
			out = append(out, s)
		}
	}
	return out, nil
}

func boundingBox(footprint [][2]float64) (raMin, raMax, declMin, declMax float64) {
	raMin, declMin = 360, 90
	raMax, declMax = 0, -90
	for _, c := range footprint {
		raMin = min(raMin, c[0])
		raMax = max(raMax, c[0])
		declMin = min(declMin, c[1])
		declMax = max(declMax, c[1])
	}
	return raMin, raMax, declMin, declMax
}
