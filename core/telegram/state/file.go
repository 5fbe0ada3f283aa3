package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSuffix is appended to the identity to form the snapshot file name.
const FileSuffix = ".bot-data.json"

// FileBackend keeps one JSON file per identity under Dir.
type FileBackend struct {
	Dir string
}

// NewFileBackend returns a backend rooted at dir ("." when empty).
func NewFileBackend(dir string) *FileBackend {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &FileBackend{Dir: dir}
}

// Path returns the snapshot file for identity.
func (b *FileBackend) Path(identity string) string {
	return filepath.Join(b.Dir, identity+FileSuffix)
}

// Load reads the snapshot file. A missing file yields ErrNotFound.
func (b *FileBackend) Load(_ context.Context, identity string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(identity))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes payload to a temp file in Dir and renames it over the snapshot.
func (b *FileBackend) Save(_ context.Context, identity string, payload []byte) error {
	if err := os.MkdirAll(b.Dir, 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.Dir, identity+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.Path(identity))
}
