package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON blob per crawl id under a caller-supplied
// directory. Writes are atomic (temp file + rename) so an interruption
// mid-write never corrupts the previous checkpoint.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and verifies it is usable.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint: state directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("checkpoint: %s is not a directory", dir)
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("checkpoint: create state directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("checkpoint: stat state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes cp, replacing any previous blob for the same crawl id.
func (s *FileStore) Save(_ context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	final := s.path(cp.CrawlID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("checkpoint: replace blob: %w", err)
	}
	return nil
}

// Load reads the blob for crawlID. A missing blob is ErrNotFound; an
// unrecognized version is ErrVersion.
func (s *FileStore) Load(_ context.Context, crawlID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(crawlID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: read blob: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Clear removes the blob for crawlID if present.
func (s *FileStore) Clear(_ context.Context, crawlID string) error {
	if err := os.Remove(s.path(crawlID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: remove blob: %w", err)
	}
	return nil
}

func (s *FileStore) path(crawlID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, crawlID)
	return filepath.Join(s.dir, name+".json")
}
