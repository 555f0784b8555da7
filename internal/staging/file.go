package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Brownie44l1/photo-classifier/internal/photo"
)

// FileStore keeps the slot at a single well-known path. A missing file is
// the normal "nothing staged yet" state.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the location of the staged image.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Stage(_ context.Context, img *photo.Image) error {
	if err := checkStageable(img); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace staged image: %w", err)
	}
	return nil
}

func (s *FileStore) Current(_ context.Context) (*photo.Image, error) {
	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNothingStaged
		}
		return nil, fmt.Errorf("%w: %v", photo.ErrRead, err)
	}
	return photo.Decode(data)
}
