package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Runner executes the loaded classifier on one input tensor and returns the
// flat output. Implementations must be safe for concurrent use.
type Runner interface {
	Run(input *Tensor, outputShape []int64) ([]float32, error)
	Close() error
}

// LoadFunc opens the classifier artifact described by meta.
type LoadFunc func(meta Metadata) (Runner, error)

// Handle is the loaded classifier. It is never mutated after LoadOnce and can
// be shared between goroutines.
type Handle struct {
	Metadata Metadata
	Catalog  ClassCatalog
	runner   Runner
}

// Engine loads the classifier once per process and runs inference on it.
type Engine struct {
	metadataPath string
	catalog      ClassCatalog
	load         LoadFunc
	logger       *zap.Logger

	once   sync.Once
	handle *Handle
	err    error

	closeMu sync.Mutex
	closed  bool
}

// NewEngine returns an engine that will read metadata from metadataPath and
// open the artifact with load on first use.
func NewEngine(metadataPath string, catalog ClassCatalog, load LoadFunc, logger *zap.Logger) *Engine {
	return &Engine{
		metadataPath: metadataPath,
		catalog:      catalog,
		load:         load,
		logger:       logger.Named("inference_engine"),
	}
}

// ReadMetadata parses the metadata file shipped next to the artifact.
func ReadMetadata(path string) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	return metadata, nil
}

// LoadOnce loads the classifier on the first call and returns the cached
// handle, or the cached load error, on every later call.
func (e *Engine) LoadOnce() (*Handle, error) {
	e.once.Do(func() {
		e.handle, e.err = e.loadHandle()
		if e.err != nil {
			e.logger.Error("classifier load failed", zap.Error(e.err), zap.String("metadata", e.metadataPath))
			return
		}
		e.logger.Info("classifier loaded",
			zap.Strings("classes", e.catalog.Labels()),
			zap.Int64s("input_shape", e.handle.Metadata.InputShape),
			zap.Int64s("output_shape", e.handle.Metadata.OutputShape))
	})
	return e.handle, e.err
}

func (e *Engine) loadHandle() (*Handle, error) {
	if e.load == nil {
		return nil, fmt.Errorf("%w: no loader configured", ErrModelLoad)
	}

	metadata, err := ReadMetadata(e.metadataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if len(metadata.InputShape) == 0 {
		return nil, fmt.Errorf("%w: metadata has no input shape", ErrModelLoad)
	}
	if err := e.catalog.Verify(metadata); err != nil {
		return nil, err
	}

	runner, err := e.load(metadata)
	if err != nil {
		if errors.Is(err, ErrModelLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	return &Handle{Metadata: metadata, Catalog: e.catalog, runner: runner}, nil
}

// Infer runs the classifier on t. The tensor shape must match the model's
// input shape exactly; nothing is reshaped.
func (e *Engine) Infer(h *Handle, t *Tensor) (RawScores, error) {
	return h.Infer(t)
}

// Infer runs the classifier on t.
func (h *Handle) Infer(t *Tensor) (RawScores, error) {
	if h == nil || h.runner == nil {
		return nil, fmt.Errorf("%w: classifier not loaded", ErrModelLoad)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil tensor", ErrShape)
	}
	if !slices.Equal(t.Shape, h.Metadata.InputShape) {
		return nil, fmt.Errorf("%w: got %v, model expects %v", ErrShape, t.Shape, h.Metadata.InputShape)
	}
	if want := elements(t.Shape); len(t.Data) != want {
		return nil, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShape, t.Shape, want, len(t.Data))
	}

	out, err := h.runner.Run(t, h.Metadata.OutputShape)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(out) != h.Catalog.Len() {
		return nil, fmt.Errorf("%w: classifier returned %d scores for %d classes", ErrShape, len(out), h.Catalog.Len())
	}

	raw := make(RawScores, len(out))
	for i, v := range out {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: classifier returned non-finite score %v for class %d", ErrShape, v, i)
		}
		raw[i] = v
	}
	return raw, nil
}

// Close releases the classifier. It waits for an in-flight load to finish,
// and once closed the engine never loads again.
func (e *Engine) Close() error {
	e.once.Do(func() {
		e.err = fmt.Errorf("%w: engine closed", ErrModelLoad)
	})

	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	if e.closed || e.handle == nil || e.handle.runner == nil {
		return nil
	}
	e.closed = true
	return e.handle.runner.Close()
}

func elements(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}
