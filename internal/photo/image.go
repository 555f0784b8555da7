package photo

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded photograph together with the bytes it was decoded from.
// Data is kept verbatim so that staging and reading back is byte-identical.
type Image struct {
	Format Format
	Width  int
	Height int
	Data   []byte
	Pixels image.Image
}

// Decode sniffs the encoding of data and decodes its pixels. Images of any
// registered encoding decode successfully; whether the encoding is accepted
// is decided separately by IsAccepted.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrRead)
	}

	format := DetectFormat(data)

	pixels, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	bounds := pixels.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrRead)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	return &Image{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   buf,
		Pixels: pixels,
	}, nil
}

// Digest returns the hex encoded sha256 of the original bytes.
func (img *Image) Digest() string {
	sum := sha256.Sum256(img.Data)
	return hex.EncodeToString(sum[:])
}

// Clone returns a copy that shares no byte storage with img. The decoded
// pixels are immutable after Decode and are shared.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	out := *img
	out.Data = make([]byte, len(img.Data))
	copy(out.Data, img.Data)
	return &out
}
