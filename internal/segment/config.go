package segment

import (
	"fmt"
	"math"
)

const (
	DefaultThreshold            = 0.5
	DefaultMinSilenceDurationMs = 500
	DefaultSpeechPadMs          = 30
)

// Config holds the parameters of one extraction run. It is read-only once
// built.
type Config struct {
	SamplingRate         int
	FrameSize            int
	Threshold            float64
	MinSilenceDurationMs int
	SpeechPadMs          int

	// TotalSamples is the true audio length when the classifier zero-padded
	// the last frame. Zero means len(probs) * FrameSize.
	TotalSamples int
}

// DefaultConfig returns a Config with the stock threshold, silence and
// padding values for the given rate and frame size.
func DefaultConfig(samplingRate, frameSize int) Config {
	return Config{
		SamplingRate:         samplingRate,
		FrameSize:            frameSize,
		Threshold:            DefaultThreshold,
		MinSilenceDurationMs: DefaultMinSilenceDurationMs,
		SpeechPadMs:          DefaultSpeechPadMs,
	}
}

// Validate checks every field against its constraint.
func (c Config) Validate() error {
	if c.SamplingRate <= 0 {
		return fmt.Errorf("%w: sampling_rate must be > 0, got %d", ErrInvalidConfig, c.SamplingRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("%w: frame_size must be > 0, got %d", ErrInvalidConfig, c.FrameSize)
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: speech_threshold must be in [0, 1], got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.MinSilenceDurationMs < 0 {
		return fmt.Errorf("%w: min_silence_duration_ms must be >= 0, got %d", ErrInvalidConfig, c.MinSilenceDurationMs)
	}
	if c.SpeechPadMs < 0 {
		return fmt.Errorf("%w: speech_pad_ms must be >= 0, got %d", ErrInvalidConfig, c.SpeechPadMs)
	}
	if c.TotalSamples < 0 {
		return fmt.Errorf("%w: total_samples must be >= 0, got %d", ErrInvalidConfig, c.TotalSamples)
	}
	return nil
}
