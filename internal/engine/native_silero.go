//go:build silero

package engine

// NativeAvailable reports that the Silero VAD engine is compiled in.
func NativeAvailable() bool { return true }

// NewNativeEngine creates a SileroEngine for the model file and sample rate.
func NewNativeEngine(modelPath string, sampleRate int) (Engine, error) {
	return NewSileroEngine(modelPath, sampleRate)
}
