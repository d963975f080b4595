package audio

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another. The output length
// is round(len(in) * to / from) and is aligned in time with the input: the
// resampler's filter delay is measured once per rate pair and removed, so
// speech boundaries found at the new rate match the source.
func Resample(in []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("audio: resample %d -> %d: rates must be > 0", from, to)
	}
	if from == to || len(in) == 0 {
		return in, nil
	}

	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s)
	}
	output, err := resampleAll(input, from, to)
	if err != nil {
		return nil, err
	}
	delay, err := filterDelay(from, to)
	if err != nil {
		return nil, err
	}

	want := int(math.Round(float64(len(in)) * float64(to) / float64(from)))
	out := make([]float32, want)
	for i := range out {
		if j := i + delay; j >= 0 && j < len(output) {
			out[i] = float32(max(-1, min(1, output[j])))
		}
	}
	return out, nil
}

// resampleAll runs input through a fresh resampler, including the samples
// still buffered in the filter at the end.
func resampleAll(input []float64, from, to int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler %d -> %d: %w", from, to, err)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d -> %d: %w", from, to, err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("audio: flush resampler %d -> %d: %w", from, to, err)
	}
	return append(output, tail...), nil
}

// filterDelays caches filterDelay results keyed by [from, to].
var filterDelays sync.Map

// filterDelay returns how many output samples the resampler lags (positive)
// or leads (negative) its input. It is measured from the peak of the
// response to a unit impulse half a second into a one-second buffer.
func filterDelay(from, to int) (int, error) {
	key := [2]int{from, to}
	if d, ok := filterDelays.Load(key); ok {
		return d.(int), nil
	}

	impulse := make([]float64, from)
	at := from / 2
	impulse[at] = 1
	response, err := resampleAll(impulse, from, to)
	if err != nil {
		return 0, err
	}
	peak := 0
	for i, v := range response {
		if math.Abs(v) > math.Abs(response[peak]) {
			peak = i
		}
	}
	d := peak - int(math.Round(float64(at)*float64(to)/float64(from)))
	filterDelays.Store(key, d)
	return d, nil
}
