package engine

// StubToggleInterval is the number of frames after which the stub engine
// toggles between speech and silence. At 32ms per frame, 50 frames = 1.6 seconds.
const StubToggleInterval = 50

// Fixed probabilities reported by the stub engine.
const (
	StubSpeechProbability  float32 = 0.92
	StubSilenceProbability float32 = 0.04
)

// StubEngine returns deterministic probabilities by alternating between speech
// and silence every StubToggleInterval frames. It does not look at audio data.
type StubEngine struct {
	counter  int
	speaking bool
}

// NewStubEngine creates a StubEngine starting in silence state.
func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

// Probabilities ignores the samples and emits one value per frame from the
// toggle counter. The counter persists across calls until Reset.
func (e *StubEngine) Probabilities(samples []float32, sampleRate int) ([]float32, error) {
	if err := CheckSampleRate(sampleRate); err != nil {
		return nil, err
	}
	probs := make([]float32, frameCount(len(samples), e.FrameSize(sampleRate)))
	for i := range probs {
		e.counter++
		if e.counter >= StubToggleInterval {
			e.counter = 0
			e.speaking = !e.speaking
		}
		if e.speaking {
			probs[i] = StubSpeechProbability
		} else {
			probs[i] = StubSilenceProbability
		}
	}
	return probs, nil
}

func (e *StubEngine) FrameSize(sampleRate int) int { return FrameSizeFor(sampleRate) }

// Reset returns the engine to its initial state (silence, counter zero).
func (e *StubEngine) Reset() error {
	e.counter = 0
	e.speaking = false
	return nil
}

// Close is a no-op for the stub engine.
func (e *StubEngine) Close() error {
	return nil
}
