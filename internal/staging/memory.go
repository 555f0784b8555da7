package staging

import (
	"context"
	"sync"

	"github.com/Brownie44l1/photo-classifier/internal/photo"
)

// MemoryStore keeps the slot in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	img *photo.Image
}

// NewMemoryStore returns an empty slot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Stage(_ context.Context, img *photo.Image) error {
	if err := checkStageable(img); err != nil {
		return err
	}
	clone := img.Clone()

	s.mu.Lock()
	s.img = clone
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Current(_ context.Context) (*photo.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil, ErrNothingStaged
	}
	return s.img.Clone(), nil
}
