package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yanun0323/errors"
)

// File keeps one JSON file per name under a directory. Writes go
// through a temp file and rename, so a crash mid-save leaves the
// previous blob intact.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates the directory when missing.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}
	return &File{dir: dir}, nil
}

func (s *File) LoadJSON(name string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return out, nil
}

func (s *File) SaveJSON(name string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	path := s.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "commit %s", name)
	}
	return nil
}

func (s *File) Close() error { return nil }

func (s *File) path(name string) string {
	// Names may carry a venue/class qualifier; keep them filesystem-safe.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
	return filepath.Join(s.dir, safe+".json")
}
