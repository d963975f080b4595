//go:build silero

package engine

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// sileroStateSize is the hidden state dimension per layer.
// Silero VAD v5 uses a combined state tensor of shape [2, 1, 128].
const sileroStateSize = 128

// contextSizeFor returns how many trailing samples of the previous window
// Silero v5 expects in front of the current one.
func contextSizeFor(sampleRate int) int {
	if sampleRate == SampleRate8k {
		return 32
	}
	return 64
}

// ortInitOnce ensures ONNX Runtime environment is initialized exactly once.
// ortInitErr is stored at package scope so subsequent NewSileroEngine calls
// surface the failure instead of proceeding with an uninitialized environment.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroEngine runs Silero VAD v5 inference via ONNX Runtime. One engine is
// bound to one sample rate and must not be shared between goroutines.
type SileroEngine struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32] // [1, context+window]
	stateTensor  *ort.Tensor[float32] // [2, 1, 128]
	srTensor     *ort.Tensor[int64]   // [1]
	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, 128]

	sampleRate int
	window     int
	context    []float32
}

// NewSileroEngine initializes ONNX Runtime, loads the model at modelPath and
// allocates the tensors for the given sample rate.
func NewSileroEngine(modelPath string, sampleRate int) (*SileroEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("silero: model path is empty")
	}
	if err := CheckSampleRate(sampleRate); err != nil {
		return nil, err
	}

	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("silero: %w", ortInitErr)
	}

	e := &SileroEngine{
		sampleRate: sampleRate,
		window:     FrameSizeFor(sampleRate),
		context:    make([]float32, contextSizeFor(sampleRate)),
	}
	if err := e.allocate(); err != nil {
		e.Close()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{e.inputTensor, e.stateTensor, e.srTensor},
		[]ort.Value{e.outputTensor, e.stateNTensor},
		nil, // default session options
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("silero: create session from %s: %w", modelPath, err)
	}
	e.session = session
	return e, nil
}

func (e *SileroEngine) allocate() error {
	var err error
	if e.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(e.context)+e.window))); err != nil {
		return fmt.Errorf("silero: create input tensor: %w", err)
	}
	if e.stateTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize)); err != nil {
		return fmt.Errorf("silero: create state tensor: %w", err)
	}
	if e.srTensor, err = ort.NewTensor(ort.NewShape(1), []int64{int64(e.sampleRate)}); err != nil {
		return fmt.Errorf("silero: create sr tensor: %w", err)
	}
	if e.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return fmt.Errorf("silero: create output tensor: %w", err)
	}
	if e.stateNTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize)); err != nil {
		return fmt.Errorf("silero: create stateN tensor: %w", err)
	}
	// onnxruntime_go may not hand out zeroed memory.
	clear(e.stateTensor.GetData())
	clear(e.stateNTensor.GetData())
	return nil
}

// Probabilities resets the RNN state, then runs one inference per window over
// the whole clip. The last window is zero-padded.
func (e *SileroEngine) Probabilities(samples []float32, sampleRate int) ([]float32, error) {
	if sampleRate != e.sampleRate {
		return nil, fmt.Errorf("%w: engine bound to %d, got %d", ErrWrongSampleRate, e.sampleRate, sampleRate)
	}
	if err := e.Reset(); err != nil {
		return nil, err
	}

	probs := make([]float32, frameCount(len(samples), e.window))
	window := make([]float32, e.window)
	for i := range probs {
		start := i * e.window
		n := copy(window, samples[start:min(start+e.window, len(samples))])
		clear(window[n:])

		prob, err := e.infer(window)
		if err != nil {
			return nil, fmt.Errorf("silero: frame %d: %w", i, err)
		}
		probs[i] = min(max(prob, 0), 1)
	}
	return probs, nil
}

func (e *SileroEngine) FrameSize(int) int { return e.window }

// Reset clears the RNN hidden state and the carried context.
func (e *SileroEngine) Reset() error {
	if e.stateTensor != nil {
		clear(e.stateTensor.GetData())
	}
	clear(e.context)
	return nil
}

// Close releases ONNX Runtime resources. Safe to call multiple times.
func (e *SileroEngine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[float32]{e.inputTensor, e.stateTensor, e.outputTensor, e.stateNTensor} {
		if t != nil {
			t.Destroy()
		}
	}
	e.inputTensor, e.stateTensor, e.outputTensor, e.stateNTensor = nil, nil, nil, nil
	if e.srTensor != nil {
		e.srTensor.Destroy()
		e.srTensor = nil
	}
	return nil
}

// infer runs a single inference on context+window and carries the hidden
// state and trailing context forward.
func (e *SileroEngine) infer(window []float32) (float32, error) {
	input := e.inputTensor.GetData()
	copy(input, e.context)
	copy(input[len(e.context):], window)

	if err := e.session.Run(); err != nil {
		return 0, fmt.Errorf("inference: %w", err)
	}

	copy(e.stateTensor.GetData(), e.stateNTensor.GetData())
	copy(e.context, input[len(input)-len(e.context):])
	return e.outputTensor.GetData()[0], nil
}
