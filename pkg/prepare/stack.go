package prepare

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tasoc/tessphot/pkg/skygeom"
)

// StackSettings is the single settings row of an image-stack database.
type StackSettings struct {
	Sector     int    `gorm:"column:sector;not null"`
	Camera     int    `gorm:"column:camera;not null"`
	CCD        int    `gorm:"column:ccd;not null"`
	Rows       int    `gorm:"column:img_rows;not null"`
	Cols       int    `gorm:"column:img_cols;not null"`
	OffsetRows int    `gorm:"column:offset_rows;not null"`
	OffsetCols int    `gorm:"column:offset_cols;not null"`
	NumFrames  int    `gorm:"column:num_frames;not null"`
	Projection string `gorm:"column:projection;not null"` // JSON skygeom.Projection
}

func (StackSettings) TableName() string { return "settings" }

// StackFrame is one stored exposure. Pixels are float64 little-endian,
// row-major.
type StackFrame struct {
	Index   int     `gorm:"column:idx;primaryKey;autoIncrement:false"`
	Time    float64 `gorm:"column:time;not null"`
	Cadence int64   `gorm:"column:cadence;not null;index"`
	Pixels  []byte  `gorm:"column:pixels;not null"`
}

func (StackFrame) TableName() string { return "frames" }

// StackPath returns the canonical stack filename for a sector/camera/CCD.
func StackPath(inputFolder string, sector, camera, ccd int) string {
	return filepath.Join(inputFolder,
		fmt.Sprintf("sector%03d_camera%d_ccd%d.sqlite", sector, camera, ccd))
}

var stackNameRe = regexp.MustCompile(`^sector(\d{3})_camera(\d)_ccd(\d)\.sqlite$`)

// ParseStackPath extracts (sector, camera, ccd) from a stack filename.
func ParseStackPath(path string) (sector, camera, ccd int, ok bool) {
	m := stackNameRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, 0, 0, false
	}
	sector, _ = strconv.Atoi(m[1])
	camera, _ = strconv.Atoi(m[2])
	ccd, _ = strconv.Atoi(m[3])
	return sector, camera, ccd, true
}

// FindStackFiles returns the image-stack databases in a directory matching
// the filters, sorted by name.
func FindStackFiles(dir string, filters FFIFilters) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "sector*_camera*_ccd*.sqlite"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, path := range matches {
		sector, camera, ccd, ok := ParseStackPath(path)
		if ok && filters.match(sector, camera, ccd) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stack is a read handle on one image-stack database.
type Stack struct {
	Settings StackSettings

	db   *gorm.DB
	proj skygeom.Projection
}

// OpenStack opens an existing stack database.
func OpenStack(path string) (*Stack, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Stack{db: db}
	if err := db.First(&s.Settings).Error; err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s: load settings: %w", path, err)
	}
	if err := json.Unmarshal([]byte(s.Settings.Projection), &s.proj); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s: projection: %w", path, err)
	}
	return s, nil
}

func (s *Stack) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Projection maps full-CCD pixel coordinates to the sky. The science-area
// offsets from the settings row must be subtracted separately, as the
// photometry does.
func (s *Stack) Projection() skygeom.Projection { return s.proj }

func (s *Stack) NumFrames() int { return s.Settings.NumFrames }

// Times returns the mid-exposure times of all frames, in index order.
func (s *Stack) Times() ([]float64, error) {
	var times []float64
	err := s.db.Model(&StackFrame{}).Order("idx").Pluck("time", &times).Error
	return times, err
}

// Frame returns the pixel values of frame i, row-major with the shape from
// the settings row.
func (s *Stack) Frame(i int) ([]float64, error) {
	var frame StackFrame
	if err := s.db.Where("idx = ?", i).First(&frame).Error; err != nil {
		return nil, fmt.Errorf("frame %d: %w", i, err)
	}
	return decodePixels(frame.Pixels, s.Settings.Rows*s.Settings.Cols)
}

func encodePixels(pix []float64) []byte {
	out := make([]byte, 8*len(pix))
	for i, v := range pix {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func decodePixels(raw []byte, n int) ([]float64, error) {
	if len(raw) != 8*n {
		return nil, fmt.Errorf("pixel blob is %d bytes, expected %d", len(raw), 8*n)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return out, nil
}
