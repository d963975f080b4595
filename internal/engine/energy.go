package engine

import "math"

// Default dBFS range mapped onto [0, 1] by the energy engine.
const (
	DefaultEnergyFloorDB   = -60.0
	DefaultEnergyCeilingDB = -20.0
)

// EnergyEngine scores frames by RMS level. It needs no model and is fully
// deterministic, which makes it the fallback when Silero is unavailable.
// Frames at or below FloorDB score 0, at or above CeilingDB score 1, with a
// linear ramp in between.
type EnergyEngine struct {
	FloorDB   float64
	CeilingDB float64
}

// NewEnergyEngine returns an EnergyEngine with the default dBFS range.
func NewEnergyEngine() *EnergyEngine {
	return &EnergyEngine{FloorDB: DefaultEnergyFloorDB, CeilingDB: DefaultEnergyCeilingDB}
}

func (e *EnergyEngine) Probabilities(samples []float32, sampleRate int) ([]float32, error) {
	if err := CheckSampleRate(sampleRate); err != nil {
		return nil, err
	}
	frame := e.FrameSize(sampleRate)
	probs := make([]float32, frameCount(len(samples), frame))
	for i := range probs {
		start := i * frame
		end := min(start+frame, len(samples))
		probs[i] = e.score(samples[start:end], frame)
	}
	return probs, nil
}

// score computes the RMS over a full frame; missing tail samples count as zeros.
func (e *EnergyEngine) score(window []float32, frame int) float32 {
	var sum float64
	for _, s := range window {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(frame))
	if rms == 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	p := (db - e.FloorDB) / (e.CeilingDB - e.FloorDB)
	return float32(math.Max(0, math.Min(1, p)))
}

func (e *EnergyEngine) FrameSize(sampleRate int) int { return FrameSizeFor(sampleRate) }

// Reset is a no-op; the energy engine keeps no state between frames.
func (e *EnergyEngine) Reset() error { return nil }

// Close is a no-op for the energy engine.
func (e *EnergyEngine) Close() error { return nil }
