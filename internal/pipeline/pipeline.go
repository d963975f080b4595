// Package pipeline wires the audio loader, a frame classifier and the segment
// extractor into a file-level speech timestamp detector.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/audio"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/config"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/engine"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/metrics"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/output"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/segment"
)

// EngineFactory creates a fresh engine for one clip at the given rate.
type EngineFactory func(sampleRate int) (engine.Engine, error)

// EngineFactoryFor returns a factory building engines of the configured kind.
func EngineFactoryFor(cfg config.Config) EngineFactory {
	return func(sampleRate int) (engine.Engine, error) {
		return engine.New(cfg.Engine, cfg.ModelPath, sampleRate)
	}
}

// Result is the outcome of one clip.
type Result struct {
	Segments     []segment.Segment
	SamplingRate int
	FrameSize    int
	Frames       int
	AudioSeconds float64
}

// SpeechSeconds sums the segment durations.
func (r Result) SpeechSeconds() float64 {
	var total float64
	for _, s := range r.Segments {
		total += s.Duration()
	}
	return total
}

// Detector runs the load → classify → extract pipeline. It is safe for
// concurrent use: every call gets its own engine from the factory.
type Detector struct {
	cfg       config.Config
	newEngine EngineFactory
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// New returns a Detector. m may be nil.
func New(cfg config.Config, logger *slog.Logger, newEngine EngineFactory, m *metrics.Metrics) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:       cfg,
		newEngine: newEngine,
		log:       logger.With("component", "pipeline"),
		metrics:   m,
	}
}

// Config returns the detector's base configuration.
func (d *Detector) Config() config.Config { return d.cfg }

// Detect processes one WAV stream with the detector's configuration.
func (d *Detector) Detect(ctx context.Context, r io.ReadSeeker) (Result, error) {
	return d.DetectWithConfig(ctx, r, d.cfg)
}

// DetectWithConfig processes one WAV stream with cfg instead of the base
// configuration (used for per-request overrides).
func (d *Detector) DetectWithConfig(ctx context.Context, r io.ReadSeeker, cfg config.Config) (Result, error) {
	start := time.Now()
	res, err := d.detect(ctx, r, cfg)
	elapsed := time.Since(start)
	if err != nil {
		d.metrics.ObserveFailure(elapsed)
		return Result{}, err
	}
	d.metrics.ObserveExtraction(elapsed, res.AudioSeconds, res.SpeechSeconds(), len(res.Segments))
	d.log.Debug("clip processed",
		"frames", res.Frames,
		"audio_seconds", res.AudioSeconds,
		"segments", len(res.Segments),
		"elapsed", elapsed,
	)
	return res, nil
}

func (d *Detector) detect(ctx context.Context, r io.ReadSeeker, cfg config.Config) (Result, error) {
	if err := cfg.ValidateVADParams(); err != nil {
		return Result{}, err
	}
	clip, err := audio.Load(r, cfg.SamplingRate)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	eng, err := d.newEngine(clip.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: create engine: %w", err)
	}
	defer eng.Close()

	probs, err := eng.Probabilities(clip.Samples, clip.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: classify: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	frameSize := eng.FrameSize(clip.SampleRate)
	segs, err := segment.Extract(probs, cfg.SegmentConfig(frameSize, len(clip.Samples)))
	if err != nil {
		return Result{}, err
	}
	return Result{
		Segments:     segs,
		SamplingRate: clip.SampleRate,
		FrameSize:    frameSize,
		Frames:       len(probs),
		AudioSeconds: clip.Duration(),
	}, nil
}

// DetectFile reads the WAV at in and writes the segments to out in format.
func (d *Detector) DetectFile(ctx context.Context, in, out string, format output.Format) (Result, error) {
	f, err := os.Open(in)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: open %s: %w", in, err)
	}
	defer f.Close()

	res, err := d.Detect(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: %w", in, err)
	}
	if err := output.WriteFile(out, format, res.Segments, res.SamplingRate); err != nil {
		return Result{}, err
	}
	d.log.Info("segments written",
		"input", in,
		"output", out,
		"format", string(format),
		"segments", len(res.Segments),
	)
	return res, nil
}
