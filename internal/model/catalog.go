package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

var defaultLabels = []string{
	"058.doorknob",
	"070.fire-extinguisher",
	"071.fire-hydrant",
	"072.fire-truck",
	"126.ladder",
	"159.people",
	"253.faces-easy-101",
}

// ClassCatalog is the ordered, immutable list of category labels. Index i of
// every score vector refers to the i-th label.
type ClassCatalog struct {
	labels []string
}

// DefaultCatalog returns the categories the bundled classifier was trained on.
func DefaultCatalog() ClassCatalog {
	c, _ := NewCatalog(defaultLabels...)
	return c
}

// NewCatalog builds a catalog, rejecting empty and duplicate labels.
func NewCatalog(labels ...string) (ClassCatalog, error) {
	if len(labels) == 0 {
		return ClassCatalog{}, fmt.Errorf("catalog must contain at least one label")
	}
	seen := make(map[string]struct{}, len(labels))
	for i, l := range labels {
		if l == "" {
			return ClassCatalog{}, fmt.Errorf("catalog label %d is empty", i)
		}
		if _, dup := seen[l]; dup {
			return ClassCatalog{}, fmt.Errorf("catalog label %q is duplicated", l)
		}
		seen[l] = struct{}{}
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return ClassCatalog{labels: out}, nil
}

func (c ClassCatalog) Len() int {
	return len(c.labels)
}

func (c ClassCatalog) Label(i int) (string, bool) {
	if i < 0 || i >= len(c.labels) {
		return "", false
	}
	return c.labels[i], true
}

// Labels returns a copy of the labels in catalog order.
func (c ClassCatalog) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Digest is the hex sha256 of the newline-joined labels.
func (c ClassCatalog) Digest() string {
	return labelsDigest(c.labels)
}

func labelsDigest(labels []string) string {
	sum := sha256.Sum256([]byte(strings.Join(labels, "\n")))
	return hex.EncodeToString(sum[:])
}

// Verify checks that the artifact metadata was produced for exactly this
// catalog. A positional mismatch would silently mislabel every prediction.
func (c ClassCatalog) Verify(meta Metadata) error {
	if len(meta.Classes) != c.Len() {
		return fmt.Errorf("%w: artifact has %d classes, catalog has %d", ErrModelLoad, len(meta.Classes), c.Len())
	}
	for i, l := range meta.Classes {
		if l != c.labels[i] {
			return fmt.Errorf("%w: class %d is %q in artifact, %q in catalog", ErrModelLoad, i, l, c.labels[i])
		}
	}
	if meta.ClassesSHA256 != "" && !strings.EqualFold(meta.ClassesSHA256, c.Digest()) {
		return fmt.Errorf("%w: classes digest %s does not match catalog digest %s", ErrModelLoad, meta.ClassesSHA256, c.Digest())
	}
	if n := outputClasses(meta.OutputShape); n != c.Len() {
		return fmt.Errorf("%w: output shape %v does not carry %d classes", ErrModelLoad, meta.OutputShape, c.Len())
	}
	return nil
}

// outputClasses returns N for an output shape of [1, N], or -1.
func outputClasses(shape []int64) int {
	if len(shape) != 2 || shape[0] != 1 {
		return -1
	}
	return int(shape[1])
}
