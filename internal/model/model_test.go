package model_test

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/photo-classifier/internal/model"
	"github.com/Brownie44l1/photo-classifier/internal/model/modeltest"
)

func TestNormalizeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 500; n++ {
		size := 1 + rng.Intn(16)
		scale := []float64{1, 10, 100, 1000}[rng.Intn(4)]
		raw := make(model.RawScores, size)
		for i := range raw {
			raw[i] = float32((rng.Float64()*2 - 1) * scale)
		}

		probs := model.Normalize(raw)
		require.Len(t, probs, size)

		var sum float64
		for _, p := range probs {
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 1.0)
			sum += p
		}
		require.InDelta(t, 1.0, sum, 1e-6)
		require.Equal(t, model.Argmax(raw), model.Argmax(probs), "raw=%v", raw)
	}
}

func TestNormalizeExtremeLogits(t *testing.T) {
	probs := model.Normalize(model.RawScores{1e30, -1e30, 88, 1e30})
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
	}
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[3], 1e-12)
	assert.Equal(t, 0, model.Argmax(probs))

	assert.Empty(t, model.Normalize(nil))
}

func TestNormalizeNonFiniteLogits(t *testing.T) {
	inf, nan := float32(math.Inf(1)), float32(math.NaN())

	tests := []struct {
		name string
		raw  model.RawScores
		want model.Probabilities
	}{
		{"single +Inf", model.RawScores{0, inf, 1, 0, 0, 0, 0}, model.Probabilities{0, 1, 0, 0, 0, 0, 0}},
		{"two +Inf share", model.RawScores{inf, 3, inf}, model.Probabilities{0.5, 0, 0.5}},
		{"NaN gets nothing", model.RawScores{nan, 0, 0}, model.Probabilities{0, 0.5, 0.5}},
		{"-Inf gets nothing", model.RawScores{-inf, 0}, model.Probabilities{0, 1}},
		{"all -Inf is uniform", model.RawScores{-inf, -inf}, model.Probabilities{0.5, 0.5}},
		{"all NaN is uniform", model.RawScores{nan, nan, nan, nan}, model.Probabilities{0.25, 0.25, 0.25, 0.25}},
		{"+Inf beats NaN", model.RawScores{nan, inf}, model.Probabilities{0, 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			probs := model.Normalize(tc.raw)
			require.Len(t, probs, len(tc.raw))

			var sum float64
			for _, p := range probs {
				require.False(t, math.IsNaN(p))
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-12)
			assert.InDeltaSlice(t, tc.want, probs, 1e-12)
			assert.Equal(t, model.Argmax(tc.raw), model.Argmax(probs))
		})
	}
}

func TestArgmaxSkipsNaN(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, 1, model.Argmax([]float64{nan, 0.2, 0.1}))
	assert.Equal(t, 2, model.Argmax([]float64{0.1, nan, 0.3}))
	assert.Equal(t, 0, model.Argmax([]float64{nan, nan}))
}

func TestArgmaxTieBreak(t *testing.T) {
	assert.Equal(t, 1, model.Argmax([]float64{0.1, 0.45, 0.45}))
	assert.Equal(t, -1, model.Argmax([]float32{}))
}

func TestReport(t *testing.T) {
	catalog := model.DefaultCatalog()
	raw := model.RawScores{0.5, -1, 4, 0, 1, 2, -3}

	report, err := model.Report(model.Normalize(raw), raw, catalog)
	require.NoError(t, err)

	assert.Equal(t, "071.fire-hydrant", report.TopLabel)
	assert.Equal(t, 2, report.TopIndex)
	assert.Greater(t, report.TopConfidencePercent, 0.0)
	assert.LessOrEqual(t, report.TopConfidencePercent, 100.0)
	assert.Equal(t, report.TopConfidencePercent, math.Round(report.TopConfidencePercent*100)/100)

	require.Len(t, report.PerCategory, catalog.Len())
	for i, c := range report.PerCategory {
		label, _ := catalog.Label(i)
		assert.Equal(t, label, c.Label)
		assert.Equal(t, raw[i], c.RawScore)
	}

	p, ok := report.Probability("071.fire-hydrant")
	require.True(t, ok)
	assert.InDelta(t, report.TopConfidencePercent, p*100, 0.005)
}

func TestReportTieBreakAndSummary(t *testing.T) {
	catalog, err := model.NewCatalog("a", "b", "c")
	require.NoError(t, err)

	report, err := model.Report(model.Probabilities{0.25, 0.375, 0.375}, nil, catalog)
	require.NoError(t, err)
	assert.Equal(t, "b", report.TopLabel)
	assert.Equal(t, 37.5, report.TopConfidencePercent)
	assert.Equal(t, "This image most likely belongs to 'b' with a 37.50 percent confidence.", report.Summary())
}

func TestReportLengthMismatch(t *testing.T) {
	_, err := model.Report(model.Probabilities{0.5, 0.5}, nil, model.DefaultCatalog())
	assert.ErrorIs(t, err, model.ErrShape)

	catalog, _ := model.NewCatalog("a", "b")
	_, err = model.Report(model.Probabilities{0.5, 0.5}, model.RawScores{1}, catalog)
	assert.ErrorIs(t, err, model.ErrShape)
}

func TestNewCatalog(t *testing.T) {
	_, err := model.NewCatalog()
	assert.Error(t, err)
	_, err = model.NewCatalog("a", "a")
	assert.Error(t, err)
	_, err = model.NewCatalog("a", "")
	assert.Error(t, err)

	c := model.DefaultCatalog()
	assert.Equal(t, 7, c.Len())
	labels := c.Labels()
	labels[0] = "mutated"
	first, _ := c.Label(0)
	assert.Equal(t, "058.doorknob", first)
	_, ok := c.Label(7)
	assert.False(t, ok)
}

func TestCatalogVerify(t *testing.T) {
	catalog := model.DefaultCatalog()
	meta := modeltest.Metadata(catalog)
	require.NoError(t, catalog.Verify(meta))

	reordered := meta
	reordered.Classes = catalog.Labels()
	reordered.Classes[0], reordered.Classes[1] = reordered.Classes[1], reordered.Classes[0]
	reordered.ClassesSHA256 = ""
	assert.ErrorIs(t, catalog.Verify(reordered), model.ErrModelLoad)

	short := meta
	short.Classes = catalog.Labels()[:6]
	assert.ErrorIs(t, catalog.Verify(short), model.ErrModelLoad)

	badDigest := meta
	badDigest.ClassesSHA256 = "deadbeef"
	assert.ErrorIs(t, catalog.Verify(badDigest), model.ErrModelLoad)

	badOutput := meta
	badOutput.OutputShape = []int64{1, 6}
	assert.ErrorIs(t, catalog.Verify(badOutput), model.ErrModelLoad)
}

func newEngine(t *testing.T, runner *modeltest.Runner, loads *atomic.Int64) *model.Engine {
	t.Helper()
	catalog := model.DefaultCatalog()
	path := modeltest.WriteMetadata(t, modeltest.Metadata(catalog))
	return model.NewEngine(path, catalog, modeltest.Loader(runner, loads), zap.NewNop())
}

func inputTensor() *model.Tensor {
	return &model.Tensor{Shape: []int64{1, 200, 200, 3}, Data: make([]float32, 200*200*3)}
}

func TestEngineLoadsOnce(t *testing.T) {
	var loads atomic.Int64
	engine := newEngine(t, modeltest.Fixed(0, 0, 5, 0, 0, 0, 0), &loads)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := engine.LoadOnce()
			assert.NoError(t, err)
			assert.NotNil(t, h)
		}()
	}
	wg.Wait()

	h1, _ := engine.LoadOnce()
	h2, _ := engine.LoadOnce()
	assert.Same(t, h1, h2)
	assert.Equal(t, int64(1), loads.Load())
}

func TestEngineInferIsDeterministic(t *testing.T) {
	runner := modeltest.ChannelMean(7, 0, 2, 4)
	engine := newEngine(t, runner, nil)
	h, err := engine.LoadOnce()
	require.NoError(t, err)

	in := inputTensor()
	for i := range in.Data {
		in.Data[i] = float32(i % 256)
	}

	first, err := engine.Infer(h, in)
	require.NoError(t, err)
	second, err := engine.Infer(h, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 7)
}

func TestEngineShapeMismatch(t *testing.T) {
	runner := modeltest.Fixed(0, 0, 5, 0, 0, 0, 0)
	engine := newEngine(t, runner, nil)
	h, err := engine.LoadOnce()
	require.NoError(t, err)

	_, err = engine.Infer(h, &model.Tensor{Shape: []int64{1, 3, 200, 200}, Data: make([]float32, 200*200*3)})
	assert.ErrorIs(t, err, model.ErrShape)

	_, err = engine.Infer(h, &model.Tensor{Shape: []int64{1, 200, 200, 3}, Data: make([]float32, 10)})
	assert.ErrorIs(t, err, model.ErrShape)

	_, err = engine.Infer(h, nil)
	assert.ErrorIs(t, err, model.ErrShape)

	assert.Equal(t, int64(0), runner.Calls.Load(), "mismatched tensors must never reach the runtime")
}

func TestEngineOutputLengthMismatch(t *testing.T) {
	engine := newEngine(t, modeltest.Fixed(1, 2, 3), nil)
	h, err := engine.LoadOnce()
	require.NoError(t, err)

	_, err = engine.Infer(h, inputTensor())
	assert.ErrorIs(t, err, model.ErrShape)
}

func TestEngineLoadErrorIsSticky(t *testing.T) {
	var loads atomic.Int64
	catalog := model.DefaultCatalog()
	path := modeltest.WriteMetadata(t, modeltest.Metadata(catalog))
	engine := model.NewEngine(path, catalog, func(model.Metadata) (model.Runner, error) {
		loads.Add(1)
		return nil, errors.New("corrupt artifact")
	}, zap.NewNop())

	_, err := engine.LoadOnce()
	require.ErrorIs(t, err, model.ErrModelLoad)
	_, err = engine.LoadOnce()
	require.ErrorIs(t, err, model.ErrModelLoad)
	assert.Equal(t, int64(1), loads.Load())

	_, err = engine.Infer(nil, inputTensor())
	assert.ErrorIs(t, err, model.ErrModelLoad)
}

func TestEngineMissingMetadata(t *testing.T) {
	engine := model.NewEngine("/nonexistent/model_metadata.json", model.DefaultCatalog(),
		modeltest.Loader(modeltest.Fixed(), nil), zap.NewNop())

	_, err := engine.LoadOnce()
	assert.ErrorIs(t, err, model.ErrModelLoad)
}

func TestEngineCatalogMismatch(t *testing.T) {
	other, err := model.NewCatalog("cat", "dog")
	require.NoError(t, err)
	path := modeltest.WriteMetadata(t, modeltest.Metadata(other))

	engine := model.NewEngine(path, model.DefaultCatalog(), modeltest.Loader(modeltest.Fixed(), nil), zap.NewNop())
	_, err = engine.LoadOnce()
	assert.ErrorIs(t, err, model.ErrModelLoad)
}

func TestEngineClose(t *testing.T) {
	runner := modeltest.Fixed(0, 0, 5, 0, 0, 0, 0)
	engine := newEngine(t, runner, nil)

	_, err := engine.LoadOnce()
	require.NoError(t, err)
	require.NoError(t, engine.Close())
	assert.True(t, runner.Closed.Load())
	require.NoError(t, engine.Close())
}

func TestEngineCloseBeforeLoad(t *testing.T) {
	var loads atomic.Int64
	runner := modeltest.Fixed(0, 0, 5, 0, 0, 0, 0)
	engine := newEngine(t, runner, &loads)

	require.NoError(t, engine.Close())
	_, err := engine.LoadOnce()
	assert.ErrorIs(t, err, model.ErrModelLoad)
	assert.Equal(t, int64(0), loads.Load())
	assert.False(t, runner.Closed.Load())
}

func TestEngineCloseDuringLoad(t *testing.T) {
	for i := 0; i < 50; i++ {
		runner := modeltest.Fixed(0, 0, 5, 0, 0, 0, 0)
		engine := newEngine(t, runner, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		var loadErr error
		go func() {
			defer wg.Done()
			_, loadErr = engine.LoadOnce()
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Close())
		}()
		wg.Wait()

		// Either the load won and Close released it, or Close won and the
		// load was refused.
		if loadErr == nil {
			assert.True(t, runner.Closed.Load())
		} else {
			assert.ErrorIs(t, loadErr, model.ErrModelLoad)
			assert.False(t, runner.Closed.Load())
		}
	}
}

func TestEngineRejectsNonFiniteScores(t *testing.T) {
	for _, bad := range []float32{float32(math.Inf(1)), float32(math.Inf(-1)), float32(math.NaN())} {
		engine := newEngine(t, modeltest.Fixed(0, bad, 1, 0, 0, 0, 0), nil)
		h, err := engine.LoadOnce()
		require.NoError(t, err)

		raw, err := engine.Infer(h, inputTensor())
		assert.ErrorIs(t, err, model.ErrShape, "score %v", bad)
		assert.Nil(t, raw)
	}
}

func TestReadMetadataDefaults(t *testing.T) {
	meta := modeltest.Metadata(model.DefaultCatalog())
	meta.InputName, meta.OutputName = "", ""
	got, err := model.ReadMetadata(modeltest.WriteMetadata(t, meta))
	require.NoError(t, err)
	assert.Equal(t, "input", got.InputName)
	assert.Equal(t, "output", got.OutputName)
	assert.Equal(t, []int64{1, 200, 200, 3}, got.InputShape)
}
