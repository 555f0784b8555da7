package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// ONNXLoader returns a LoadFunc opening the ONNX artifact at modelPath.
// sharedLibrary optionally points at the onnxruntime shared library.
func ONNXLoader(modelPath, sharedLibrary string) LoadFunc {
	return func(meta Metadata) (Runner, error) {
		if err := initEnvironment(sharedLibrary); err != nil {
			return nil, err
		}

		session, err := ort.NewDynamicAdvancedSession(modelPath,
			[]string{meta.InputName}, []string{meta.OutputName}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create ONNX session: %w", err)
		}
		return &onnxRunner{session: session}, nil
	}
}

func initEnvironment(sharedLibrary string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if sharedLibrary != "" {
		ort.SetSharedLibraryPath(sharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// onnxRunner allocates tensors per call, so concurrent Run calls do not
// share buffers.
type onnxRunner struct {
	session *ort.DynamicAdvancedSession
}

func (r *onnxRunner) Run(input *Tensor, outputShape []int64) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := r.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, err
	}

	data := outputTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (r *onnxRunner) Close() error {
	if r.session != nil {
		if err := r.session.Destroy(); err != nil {
			return err
		}
	}
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}
