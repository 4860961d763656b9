package governance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/geox/judge/internal/config"
)

// Source yields the current SSOT. Implementations must read fresh on every
// call; the governor never caches a document across requests.
type Source interface {
	Load(ctx context.Context) (*SSOT, error)
}

// Store is a Source that can also replace the document.
type Store interface {
	Source
	Save(ctx context.Context, doc map[string]any) error
}

// FileStore keeps the SSOT in a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store for the SSOT file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and validates the file.
func (s *FileStore) Load(ctx context.Context) (*SSOT, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadSSOT(s.Path)
}

// Save writes doc as indented JSON via temp file and rename.
func (s *FileStore) Save(ctx context.Context, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal judge SSOT: %w", err)
	}
	return config.WriteFileAtomic(s.Path, append(data, '\n'))
}

// StaticSource serves a fixed document. Used by tests and the CLI when the
// SSOT comes from stdin.
type StaticSource struct {
	SSOT *SSOT
}

func (s StaticSource) Load(context.Context) (*SSOT, error) {
	if s.SSOT == nil {
		return nil, configInvalid("no SSOT loaded")
	}
	// Hand out a copy so callers cannot alter the baseline.
	return NewSSOT(cloneDoc(s.SSOT.Doc), s.SSOT.Source)
}
