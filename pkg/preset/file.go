package preset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// FileStore keeps one TOML file per preset in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based preset store.
// If baseDir is empty, it defaults to <user config dir>/metaop/presets.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		baseDir = filepath.Join(dir, "metaop", "presets")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create preset dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) presetPath(name string) string {
	return filepath.Join(s.baseDir, name+".toml")
}

// Get reads the named preset.
func (s *FileStore) Get(ctx context.Context, name string) (*Preset, error) {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(s.presetPath(name), name)
}

func (s *FileStore) read(path, name string) (*Preset, error) {
	var p Preset
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(name)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse preset %s", path)
	}
	return &p, nil
}

// Save writes the preset, replacing any previous version.
func (s *FileStore) Save(ctx context.Context, p *Preset) error {
	if err := errs.ValidateIdentifier("preset name", p.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	if err := os.WriteFile(s.presetPath(p.Name), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write preset file: %w", err)
	}
	return nil
}

// Delete removes the preset file.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.presetPath(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(name)
		}
		return fmt.Errorf("remove preset file: %w", err)
	}
	return nil
}

// List reads every preset in the directory. Files that fail to parse are
// skipped.
func (s *FileStore) List(ctx context.Context) ([]Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read preset dir: %w", err)
	}
	var out []Preset
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".toml")
		p, err := s.read(filepath.Join(s.baseDir, entry.Name()), name)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	sortByName(out)
	return out, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Path returns the preset directory.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
