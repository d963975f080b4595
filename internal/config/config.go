package config

import (
	"fmt"
	"runtime"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/engine"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/segment"
)

const (
	DefaultListenAddr           = "localhost:0"
	DefaultEngine               = engine.KindAuto
	DefaultSamplingRate         = engine.SampleRate16k
	DefaultThreshold            = segment.DefaultThreshold
	DefaultMinSilenceDurationMs = segment.DefaultMinSilenceDurationMs
	DefaultSpeechPadMs          = segment.DefaultSpeechPadMs
)

// Config holds the detector and adapter configuration.
type Config struct {
	ListenAddr           string  `json:"listen_addr" yaml:"listen_addr"`
	MetricsAddr          string  `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel             string  `json:"log_level" yaml:"log_level"`
	Engine               string  `json:"engine" yaml:"engine"`
	ModelPath            string  `json:"model_path" yaml:"model_path"`
	SamplingRate         int     `json:"sampling_rate" yaml:"sampling_rate"`
	Threshold            float64 `json:"threshold" yaml:"threshold"`
	MinSilenceDurationMs int     `json:"min_silence_duration_ms" yaml:"min_silence_duration_ms"`
	SpeechPadMs          int     `json:"speech_pad_ms" yaml:"speech_pad_ms"`
	Concurrency          int     `json:"concurrency" yaml:"concurrency"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		ListenAddr:           DefaultListenAddr,
		Engine:               DefaultEngine,
		SamplingRate:         DefaultSamplingRate,
		Threshold:            DefaultThreshold,
		MinSilenceDurationMs: DefaultMinSilenceDurationMs,
		SpeechPadMs:          DefaultSpeechPadMs,
		Concurrency:          runtime.NumCPU(),
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	switch c.Engine {
	case engine.KindAuto, engine.KindSilero, engine.KindEnergy, engine.KindStub:
	default:
		return fmt.Errorf("config: engine must be auto, silero, energy or stub, got %q", c.Engine)
	}
	if c.Engine == engine.KindSilero && c.ModelPath == "" {
		return fmt.Errorf("config: engine silero requires model_path")
	}
	if err := engine.CheckSampleRate(c.SamplingRate); err != nil {
		return fmt.Errorf("config: sampling_rate: %w", err)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be >= 1, got %d", c.Concurrency)
	}
	return c.ValidateVADParams()
}

// ValidateVADParams checks only the parameters that can be overridden per
// request.
func (c Config) ValidateVADParams() error {
	if err := c.SegmentConfig(1, 0).Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SegmentConfig builds the extractor configuration for one clip.
func (c Config) SegmentConfig(frameSize, totalSamples int) segment.Config {
	return segment.Config{
		SamplingRate:         c.SamplingRate,
		FrameSize:            frameSize,
		Threshold:            c.Threshold,
		MinSilenceDurationMs: c.MinSilenceDurationMs,
		SpeechPadMs:          c.SpeechPadMs,
		TotalSamples:         totalSamples,
	}
}
