package photo

import (
	"github.com/gabriel-vasile/mimetype"
)

// Format is the encoding tag of an image.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
)

var mimeFormats = map[string]Format{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/gif":  FormatGIF,
	"image/webp": FormatWebP,
	"image/bmp":  FormatBMP,
	"image/tiff": FormatTIFF,
}

// DetectFormat sniffs the encoding from the leading bytes.
func DetectFormat(data []byte) Format {
	if len(data) == 0 {
		return FormatUnknown
	}
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if f, ok := mimeFormats[m.String()]; ok {
			return f
		}
	}
	return FormatUnknown
}

// IsAccepted reports whether img is of the single accepted encoding (JPEG).
func IsAccepted(img *Image) bool {
	return img != nil && img.Format == FormatJPEG
}

func (f Format) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}
