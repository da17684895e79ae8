package todo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v2"
)

// Default data-file names inside the input folder.
const (
	ExcludeFileName = "todolist-exclude.yaml"
	MethodsFileName = "todolist-methods.yaml"
)

// ExcludeEntry removes a target from processing. Datasource may be "tpf",
// "ffi", "tpf:..." or "all".
type ExcludeEntry struct {
	StarID     int64  `yaml:"starid"`
	Sector     int    `yaml:"sector"`
	Datasource string `yaml:"datasource"`
}

// MethodEntry forces a specific photometric method for one target.
type MethodEntry struct {
	StarID     int64  `yaml:"starid"`
	Sector     int    `yaml:"sector"`
	Datasource string `yaml:"datasource"`
	Method     string `yaml:"method"`
}

type sourceKey struct {
	starid     int64
	sector     int
	datasource string
}

// excludeSet answers "is this target excluded?" including the "all"
// wildcard.
type excludeSet map[sourceKey]struct{}

func (e excludeSet) excluded(starid int64, sector int, datasource string) bool {
	if _, ok := e[sourceKey{starid, sector, datasource}]; ok {
		return true
	}
	_, ok := e[sourceKey{starid, sector, "all"}]
	return ok
}

// loadExcludes reads an exclude file; a missing file means nothing is
// excluded.
func loadExcludes(path string) (excludeSet, error) {
	var entries []ExcludeEntry
	if err := loadYAMLList(path, &entries); err != nil {
		return nil, err
	}
	set := make(excludeSet, len(entries))
	for _, e := range entries {
		if e.Datasource == "" {
			e.Datasource = "all"
		}
		set[sourceKey{e.StarID, e.Sector, e.Datasource}] = struct{}{}
	}
	return set, nil
}

// loadMethods reads a methods file into a lookup table; a missing file
// means no overrides.
func loadMethods(path string) (map[sourceKey]string, error) {
	var entries []MethodEntry
	if err := loadYAMLList(path, &entries); err != nil {
		return nil, err
	}
	out := make(map[sourceKey]string, len(entries))
	for _, e := range entries {
		if e.Method == "" {
			return nil, fmt.Errorf("%s: starid %d has no method", path, e.StarID)
		}
		out[sourceKey{e.StarID, e.Sector, e.Datasource}] = e.Method
	}
	return out, nil
}

func loadYAMLList(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(raw, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
