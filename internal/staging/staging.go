// Package staging holds the single "selected image" slot of the process.
//
// Every backend keeps at most one image. Stage overwrites whatever was there
// before (last write wins) and Current hands back the exact bytes that were
// staged. Only accepted images may be staged.
package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/photo-classifier/internal/photo"
)

// ErrNothingStaged is returned by Current when the slot is empty.
var ErrNothingStaged = errors.New("no image staged")

// Store is the selected-image slot.
type Store interface {
	Stage(ctx context.Context, img *photo.Image) error
	Current(ctx context.Context) (*photo.Image, error)
}

func checkStageable(img *photo.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", photo.ErrRead)
	}
	if !photo.IsAccepted(img) {
		return fmt.Errorf("%w: got %s", photo.ErrFormatRejected, img.Format)
	}
	return nil
}
