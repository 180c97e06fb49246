package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store persists uploaded content under a given name. Create must return ErrNameTaken without
// consuming r when name already exists.
type Store interface {
	Create(ctx context.Context, name string, r io.Reader, size int64, contentType string) (location string, err error)
}

// DiskStore writes uploads into a local directory.
type DiskStore struct {
	dir string
}

// NewDiskStore returns a store rooted at dir. The directory must exist, see EnsureDir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// EnsureDir creates dir when it is missing.
func EnsureDir(dir string, log *zap.Logger) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("upload path %q is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat upload dir: %w", err)
	}

	log.Info("upload directory missing, creating it", zap.String("dir", dir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	return nil
}

// Create writes r to a new file called name inside the store directory.
func (s *DiskStore) Create(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", ErrNameTaken
		}
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
