package evidence

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FactFile is the on-disk fixture layout read by FileReader. JSON files work
// too since YAML is a superset.
type FactFile struct {
	Facts []Row `yaml:"facts"`
}

// FileReader serves rows from a fact fixture file, re-read on every query.
type FileReader struct {
	Path string
}

// NewFileReader returns a reader over the fixture at path.
func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

// LoadFactFile parses a fixture file.
func LoadFactFile(path string) (*FactFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence file %q: %w", path, err)
	}
	var ff FactFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse evidence file %q: %w", path, err)
	}
	for i, r := range ff.Facts {
		if r.FactID == "" {
			return nil, fmt.Errorf("evidence file %q: fact %d has no fact_id", path, i)
		}
		if r.Record == nil {
			ff.Facts[i].Record = map[string]any{}
		}
	}
	return &ff, nil
}

// QueryWindow implements Reader.
func (f *FileReader) QueryWindow(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ff, err := LoadFactFile(f.Path)
	if err != nil {
		return nil, err
	}
	return Select(ff.Facts, q)
}
