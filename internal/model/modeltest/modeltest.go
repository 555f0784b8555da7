// Package modeltest provides a deterministic stand-in for the ONNX runtime.
package modeltest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Brownie44l1/photo-classifier/internal/model"
)

// Runner scores a tensor with Score. Calls counts Run invocations.
type Runner struct {
	Score  func(input *model.Tensor) []float32
	Err    error
	Calls  atomic.Int64
	Closed atomic.Bool
}

func (r *Runner) Run(input *model.Tensor, _ []int64) ([]float32, error) {
	r.Calls.Add(1)
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Score(input), nil
}

func (r *Runner) Close() error {
	r.Closed.Store(true)
	return nil
}

// Fixed returns a runner that ignores its input.
func Fixed(scores ...float32) *Runner {
	return &Runner{Score: func(*model.Tensor) []float32 {
		out := make([]float32, len(scores))
		copy(out, scores)
		return out
	}}
}

// ChannelMean returns a runner whose logits depend on the mean of each RGB
// channel, so the same tensor always yields the same scores and a strongly
// red, green or blue image favours index redIdx, greenIdx or blueIdx.
func ChannelMean(n, redIdx, greenIdx, blueIdx int) *Runner {
	return &Runner{Score: func(t *model.Tensor) []float32 {
		var sum [3]float64
		for i, v := range t.Data {
			sum[i%3] += float64(v)
		}
		pixels := float64(len(t.Data) / 3)
		out := make([]float32, n)
		out[redIdx] += float32(sum[0] / pixels / 25)
		out[greenIdx] += float32(sum[1] / pixels / 25)
		out[blueIdx] += float32(sum[2] / pixels / 25)
		return out
	}}
}

// Loader returns a LoadFunc handing out r and counting loads.
func Loader(r *Runner, loads *atomic.Int64) model.LoadFunc {
	return func(model.Metadata) (model.Runner, error) {
		if loads != nil {
			loads.Add(1)
		}
		return r, nil
	}
}

// Metadata describes a 200×200 NHWC classifier over catalog.
func Metadata(catalog model.ClassCatalog) model.Metadata {
	return model.Metadata{
		InputName:     "input",
		OutputName:    "output",
		InputShape:    []int64{1, 200, 200, 3},
		OutputShape:   []int64{1, int64(catalog.Len())},
		Classes:       catalog.Labels(),
		ClassesSHA256: catalog.Digest(),
		ImageSize:     200,
	}
}

// WriteMetadata stores meta as json in a temp dir and returns its path.
func WriteMetadata(t testing.TB, meta model.Metadata) string {
	t.Helper()
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model_metadata.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return path
}
