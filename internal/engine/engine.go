package engine

import (
	"errors"
	"fmt"
)

// Sample rates the classifiers accept.
const (
	SampleRate8k  = 8000
	SampleRate16k = 16000
)

// ErrWrongSampleRate is returned when audio arrives at a rate the engine
// cannot classify.
var ErrWrongSampleRate = errors.New("engine: unsupported sample rate (want 8000 or 16000)")

// Engine turns mono audio into one speech probability per fixed-size frame.
type Engine interface {
	// Probabilities returns ceil(len(samples)/FrameSize) values in [0, 1].
	// The last frame is zero-padded.
	Probabilities(samples []float32, sampleRate int) ([]float32, error)
	// FrameSize returns the number of samples per frame at sampleRate.
	FrameSize(sampleRate int) int
	// Reset clears internal state (e.g., between files).
	Reset() error
	// Close releases resources.
	Close() error
}

// Engine kinds accepted by New.
const (
	KindAuto   = "auto"
	KindSilero = "silero"
	KindEnergy = "energy"
	KindStub   = "stub"
)

// FrameSizeFor returns the Silero window length for the rate: 512 samples at
// 16 kHz and 256 at 8 kHz (32ms either way).
func FrameSizeFor(sampleRate int) int {
	if sampleRate == SampleRate8k {
		return 256
	}
	return 512
}

// CheckSampleRate reports ErrWrongSampleRate for anything but 8 or 16 kHz.
func CheckSampleRate(sampleRate int) error {
	if sampleRate != SampleRate8k && sampleRate != SampleRate16k {
		return fmt.Errorf("%w: got %d", ErrWrongSampleRate, sampleRate)
	}
	return nil
}

// Resolve maps "auto" to a concrete kind based on what is compiled in and
// whether a model file was configured.
func Resolve(kind, modelPath string) string {
	if kind != KindAuto {
		return kind
	}
	if NativeAvailable() && modelPath != "" {
		return KindSilero
	}
	return KindEnergy
}

// New builds an engine of the given kind. "auto" is resolved first.
func New(kind, modelPath string, sampleRate int) (Engine, error) {
	if err := CheckSampleRate(sampleRate); err != nil {
		return nil, err
	}
	switch Resolve(kind, modelPath) {
	case KindSilero:
		return NewNativeEngine(modelPath, sampleRate)
	case KindEnergy:
		return NewEnergyEngine(), nil
	case KindStub:
		return NewStubEngine(), nil
	default:
		return nil, fmt.Errorf("engine: unknown kind %q", kind)
	}
}

// frameCount returns ceil(n / frame).
func frameCount(n, frame int) int {
	return (n + frame - 1) / frame
}
