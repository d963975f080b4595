// Package segment turns a per-frame speech probability sequence into padded,
// merged speech intervals.
//
// The extractor is a pure function of its inputs: it performs no I/O, holds no
// state between calls and may be used concurrently from any number of
// goroutines.
package segment

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput reports an empty probability sequence or a value outside [0, 1].
	ErrInvalidInput = errors.New("segment: invalid input")
	// ErrInvalidConfig reports a Config field that violates its constraint.
	ErrInvalidConfig = errors.New("segment: invalid config")
)

// Segment is a half-open speech interval [Start, End) in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Samples converts the segment bounds to sample offsets at the given rate,
// rounding to the nearest sample.
func (s Segment) Samples(samplingRate int) (start, end int) {
	rate := float64(samplingRate)
	return int(math.Round(s.Start * rate)), int(math.Round(s.End * rate))
}

// Run is a maximal sequence of frames whose probability reached the
// threshold. End is exclusive.
type Run struct {
	Start int
	End   int
}

// Runs classifies every frame against threshold (ties count as speech) and
// collapses consecutive speech frames into runs, in ascending order.
func Runs(probs []float32, threshold float64) []Run {
	var runs []Run
	open := -1
	for i, p := range probs {
		speech := float64(p) >= threshold
		switch {
		case speech && open < 0:
			open = i
		case !speech && open >= 0:
			runs = append(runs, Run{Start: open, End: i})
			open = -1
		}
	}
	if open >= 0 {
		runs = append(runs, Run{Start: open, End: len(probs)})
	}
	return runs
}

// Extract returns the speech segments found in probs, sorted by start and
// non-overlapping. Validation of cfg and probs happens before any processing;
// on failure no partial result is returned. A sequence with no frame at or
// above the threshold yields an empty, non-nil slice.
func Extract(probs []float32, cfg Config) ([]Segment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateInput(probs, cfg); err != nil {
		return nil, err
	}

	runs := mergeRuns(Runs(probs, cfg.Threshold), cfg)

	totalSamples := cfg.TotalSamples
	if totalSamples == 0 {
		totalSamples = len(probs) * cfg.FrameSize
	}

	// Bounds are padded, clipped and compared in milli-samples, where every
	// frame edge and the pad are exact integers. Seconds are derived only on
	// output, so segments that touch after padding always compare equal.
	rate := int64(cfg.SamplingRate)
	frame := int64(cfg.FrameSize) * 1000
	pad := int64(cfg.SpeechPadMs) * rate
	limit := int64(totalSamples) * 1000

	type span struct{ start, end int64 }
	spans := make([]span, 0, len(runs))
	for _, r := range runs {
		sp := span{
			start: max(0, int64(r.Start)*frame-pad),
			end:   min(limit, int64(r.End)*frame+pad),
		}
		if n := len(spans); n > 0 && sp.start <= spans[n-1].end {
			spans[n-1].end = max(spans[n-1].end, sp.end)
			continue
		}
		spans = append(spans, sp)
	}

	scale := float64(rate * 1000)
	segments := make([]Segment, len(spans))
	for i, sp := range spans {
		segments[i] = Segment{Start: float64(sp.start) / scale, End: float64(sp.end) / scale}
	}
	return segments, nil
}

// mergeRuns folds runs left to right, extending the last kept run over any
// gap shorter than the minimum silence duration.
func mergeRuns(runs []Run, cfg Config) []Run {
	if len(runs) < 2 {
		return runs
	}
	// gapFrames*FrameSize/SamplingRate*1000 < MinSilenceDurationMs, kept in
	// integers so that exact-boundary gaps are not split by rounding.
	limit := int64(cfg.MinSilenceDurationMs) * int64(cfg.SamplingRate)
	merged := runs[:1]
	for _, r := range runs[1:] {
		last := &merged[len(merged)-1]
		gap := int64(r.Start-last.End) * int64(cfg.FrameSize) * 1000
		if gap < limit {
			last.End = r.End
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func validateInput(probs []float32, cfg Config) error {
	if len(probs) == 0 {
		return fmt.Errorf("%w: probability sequence is empty", ErrInvalidInput)
	}
	for i, p := range probs {
		if math.IsNaN(float64(p)) || p < 0 || p > 1 {
			return fmt.Errorf("%w: probability[%d] = %v outside [0, 1]", ErrInvalidInput, i, p)
		}
	}
	if cfg.TotalSamples > 0 {
		maxSamples := len(probs) * cfg.FrameSize
		minSamples := (len(probs)-1)*cfg.FrameSize + 1
		if cfg.TotalSamples > maxSamples || cfg.TotalSamples < minSamples {
			return fmt.Errorf("%w: total samples %d inconsistent with %d frames of %d samples",
				ErrInvalidInput, cfg.TotalSamples, len(probs), cfg.FrameSize)
		}
	}
	return nil
}
