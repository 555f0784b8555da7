package photo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exemplar enumerates the fixed catalog of example photographs.
type Exemplar int

const (
	DoorKnob Exemplar = iota
	FireExtinguisher
	FireHydrant
	FireTruck
	Ladder
	People
	Faces
)

var exemplarNames = [...]string{
	DoorKnob:         "Door Knob",
	FireExtinguisher: "Fire Extinguisher",
	FireHydrant:      "Fire Hydrant",
	FireTruck:        "Fire Truck",
	Ladder:           "Ladder",
	People:           "People",
	Faces:            "Faces",
}

var exemplarFiles = [...]string{
	DoorKnob:         "Door_Knob_Example.jpg",
	FireExtinguisher: "Fire_Extinguisher_Example.jpg",
	FireHydrant:      "Fire_Hydrant_Example.jpg",
	FireTruck:        "Fire_Truck_Example.jpg",
	Ladder:           "Ladder_Example.jpg",
	People:           "People_Example.jpg",
	Faces:            "Faces_Example.jpg",
}

// Exemplars lists the catalog in display order.
func Exemplars() []Exemplar {
	out := make([]Exemplar, len(exemplarNames))
	for i := range out {
		out[i] = Exemplar(i)
	}
	return out
}

// ParseExemplar maps a display name onto the catalog.
func ParseExemplar(name string) (Exemplar, error) {
	for i, n := range exemplarNames {
		if n == name {
			return Exemplar(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
}

func (e Exemplar) valid() bool {
	return e >= 0 && int(e) < len(exemplarNames)
}

func (e Exemplar) String() string {
	if !e.valid() {
		return fmt.Sprintf("Exemplar(%d)", int(e))
	}
	return exemplarNames[e]
}

// FileName is the on-disk name of the exemplar inside the catalog directory.
func (e Exemplar) FileName() string {
	if !e.valid() {
		return ""
	}
	return exemplarFiles[e]
}

// SelectionMode tells Resolve how to interpret its payload.
type SelectionMode int

const (
	ModeCatalog SelectionMode = iota
	ModeUpload
)

func (m SelectionMode) String() string {
	switch m {
	case ModeCatalog:
		return "catalog"
	case ModeUpload:
		return "upload"
	default:
		return fmt.Sprintf("SelectionMode(%d)", int(m))
	}
}

// Source resolves images from the exemplar directory or from uploads.
type Source struct {
	Dir string
}

// NewSource returns a Source reading exemplars from dir.
func NewSource(dir string) *Source {
	return &Source{Dir: dir}
}

// Resolve produces the candidate image for a selection. In ModeCatalog the
// payload is an exemplar display name (string) or an Exemplar; in ModeUpload
// it is an io.Reader or the raw bytes. An upload with no payload or no bytes
// resolves to (nil, nil) and the caller must stop there.
func (s *Source) Resolve(mode SelectionMode, payload any) (*Image, error) {
	switch mode {
	case ModeCatalog:
		var ex Exemplar
		switch p := payload.(type) {
		case string:
			parsed, err := ParseExemplar(p)
			if err != nil {
				return nil, err
			}
			ex = parsed
		case Exemplar:
			if !p.valid() {
				return nil, fmt.Errorf("%w: %v", ErrNotFound, p)
			}
			ex = p
		default:
			return nil, fmt.Errorf("%w: unsupported catalog payload %T", ErrNotFound, payload)
		}
		return s.Exemplar(ex)
	case ModeUpload:
		switch p := payload.(type) {
		case nil:
			return nil, nil
		case []byte:
			if len(p) == 0 {
				return nil, nil
			}
			return Decode(p)
		case io.Reader:
			return ReadUpload(p)
		default:
			return nil, fmt.Errorf("%w: unsupported upload payload %T", ErrRead, payload)
		}
	default:
		return nil, fmt.Errorf("unknown selection mode %v", mode)
	}
}

// Exemplar reads and decodes a catalog photograph.
func (s *Source) Exemplar(e Exemplar) (*Image, error) {
	if !e.valid() {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, e)
	}
	path := filepath.Join(s.Dir, e.FileName())
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: exemplar file %s is missing: %v", ErrRead, path, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return Decode(data)
}

// ReadUpload drains r and decodes it. Zero bytes is not an error and yields nil.
func ReadUpload(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return Decode(data)
}
