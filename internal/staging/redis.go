package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Brownie44l1/photo-classifier/internal/photo"
)

// RedisStore keeps the slot under a single redis key so that several server
// processes share one selection.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore returns a store writing to key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Stage(ctx context.Context, img *photo.Image) error {
	if err := checkStageable(img); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, img.Data, 0).Err(); err != nil {
		return fmt.Errorf("stage image in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Current(ctx context.Context) (*photo.Image, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNothingStaged
		}
		return nil, fmt.Errorf("%w: %v", photo.ErrRead, err)
	}
	return photo.Decode(data)
}
