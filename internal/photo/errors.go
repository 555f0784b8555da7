package photo

import "errors"

var (
	// ErrFormatRejected is returned when a decoded image is not a JPEG.
	ErrFormatRejected = errors.New("image format rejected, only JPEG is accepted")
	// ErrRead is returned when the image bytes cannot be read or decoded.
	ErrRead = errors.New("unable to read image")
	// ErrNotFound is returned for exemplar names outside the catalog.
	ErrNotFound = errors.New("exemplar not found")
)
