package preprocess

import (
	"fmt"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/photo-classifier/internal/model"
	"github.com/Brownie44l1/photo-classifier/internal/photo"
)

const channels = 3

// Preprocessor shapes a decoded photograph into the classifier's input.
//
// Images are resized with bilinear interpolation to exactly Width×Height,
// ignoring aspect ratio, and laid out as a [1, H, W, 3] NHWC batch of one
// in RGB order. Pixel values stay in the 0..255 range; the model rescales
// internally.
type Preprocessor struct {
	Height int
	Width  int
}

// New returns a Preprocessor for the given spatial size.
func New(height, width int) *Preprocessor {
	return &Preprocessor{Height: height, Width: width}
}

// FromMetadata derives the spatial size from an NHWC input shape.
func FromMetadata(meta model.Metadata) (*Preprocessor, error) {
	shape := meta.InputShape
	if len(shape) != 4 || shape[0] != 1 || shape[3] != channels {
		return nil, fmt.Errorf("%w: expected input shape [1 H W 3], got %v", model.ErrShape, shape)
	}
	return New(int(shape[1]), int(shape[2])), nil
}

// Prepare resizes img and returns the input tensor.
func (p *Preprocessor) Prepare(img *photo.Image) (*model.Tensor, error) {
	if img == nil || img.Pixels == nil {
		return nil, fmt.Errorf("%w: no decoded pixels", photo.ErrRead)
	}
	if p.Height <= 0 || p.Width <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", model.ErrShape, p.Width, p.Height)
	}

	resized := resize.Resize(uint(p.Width), uint(p.Height), img.Pixels, resize.Bilinear)

	bounds := resized.Bounds()
	if bounds.Dx() != p.Width || bounds.Dy() != p.Height {
		return nil, fmt.Errorf("%w: resized to %dx%d, want %dx%d", model.ErrShape, bounds.Dx(), bounds.Dy(), p.Width, p.Height)
	}

	data := make([]float32, p.Height*p.Width*channels)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := (y*p.Width + x) * channels
			data[i] = float32(r >> 8)
			data[i+1] = float32(g >> 8)
			data[i+2] = float32(b >> 8)
		}
	}

	return &model.Tensor{
		Shape: []int64{1, int64(p.Height), int64(p.Width), channels},
		Data:  data,
	}, nil
}
