//go:build silero

// Tests in this file change the working directory and MUST NOT use
// t.Parallel(). They need VAD_MODEL_PATH pointing at silero_vad.onnx and an
// ONNX Runtime library under lib/<os>-<arch>/ at the project root.

package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// newIntegrationEngine skips unless both the ORT library and the model file
// are available, then returns an engine bound to sampleRate.
func newIntegrationEngine(t *testing.T, sampleRate int) *SileroEngine {
	t.Helper()
	modelPath := os.Getenv("VAD_MODEL_PATH")
	if modelPath == "" {
		t.Skip("VAD_MODEL_PATH not set")
	}
	root, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Skipf("cannot locate project root (expected go.mod at %s)", root)
	}
	modelPath, err = filepath.Abs(modelPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Chdir(root)
	t.Setenv(envDevMode, "1")
	if _, err := resolveORTLibPath(); err != nil {
		t.Skipf("ONNX Runtime library not found: %v", err)
	}

	eng, err := NewSileroEngine(modelPath, sampleRate)
	if err != nil {
		t.Fatalf("NewSileroEngine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestSileroEngineSilenceIntegration(t *testing.T) {
	eng := newIntegrationEngine(t, SampleRate16k)

	probs, err := eng.Probabilities(make([]float32, 16000), SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	if want := frameCount(16000, 512); len(probs) != want {
		t.Fatalf("got %d probabilities, want %d", len(probs), want)
	}
	for i, p := range probs {
		if p >= 0.5 {
			t.Errorf("frame %d: silence probability %v >= 0.5", i, p)
		}
	}
}

func TestSileroEngineToneProbabilitiesInRangeIntegration(t *testing.T) {
	eng := newIntegrationEngine(t, SampleRate8k)

	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/8000))
	}
	probs, err := eng.Probabilities(samples, SampleRate8k)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("frame %d: probability %v outside [0, 1]", i, p)
		}
	}
}

func TestSileroEngineDeterministicAcrossCallsIntegration(t *testing.T) {
	eng := newIntegrationEngine(t, SampleRate16k)

	samples := make([]float32, 4000)
	for i := range samples {
		samples[i] = float32(0.1 * math.Sin(float64(i)))
	}
	first, err := eng.Probabilities(samples, SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	// Probabilities resets state, so a second pass must match exactly.
	second, err := eng.Probabilities(samples, SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("frame %d: %v != %v across calls", i, first[i], second[i])
		}
	}
}

func TestSileroEngineWrongSampleRateIntegration(t *testing.T) {
	eng := newIntegrationEngine(t, SampleRate16k)

	if _, err := eng.Probabilities(make([]float32, 512), SampleRate8k); err == nil {
		t.Fatal("expected error for mismatched sample rate")
	}
}

func TestSileroEngineDoubleCloseIntegration(t *testing.T) {
	eng := newIntegrationEngine(t, SampleRate16k)

	if err := eng.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
