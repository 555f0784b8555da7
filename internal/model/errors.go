package model

import "errors"

var (
	// ErrShape is returned when a tensor does not match the model contract.
	ErrShape = errors.New("tensor shape mismatch")
	// ErrModelLoad is returned when the classifier artifact cannot be loaded.
	// It is sticky for the lifetime of an Engine.
	ErrModelLoad = errors.New("model load failed")
)
