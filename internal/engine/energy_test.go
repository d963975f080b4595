package engine

import (
	"math"
	"testing"
)

func TestEnergyEngineSilenceScoresZero(t *testing.T) {
	probs, err := NewEnergyEngine().Probabilities(make([]float32, 1024), SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range probs {
		if p != 0 {
			t.Errorf("frame %d: got %v, want 0", i, p)
		}
	}
}

func TestEnergyEngineLoudToneScoresOne(t *testing.T) {
	samples := make([]float32, 512)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	probs, err := NewEnergyEngine().Probabilities(samples, SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	if probs[0] != 1 {
		t.Fatalf("got %v, want 1 for a -9 dBFS tone", probs[0])
	}
}

func TestEnergyEngineRampIsLinear(t *testing.T) {
	// Constant 0.01 amplitude is exactly -40 dBFS: halfway between -60 and -20.
	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = 0.01
	}
	probs, err := NewEnergyEngine().Probabilities(samples, SampleRate8k)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(probs[0])-0.5) > 1e-4 {
		t.Fatalf("got %v, want ~0.5", probs[0])
	}
}

func TestEnergyEngineFrameCount(t *testing.T) {
	probs, err := NewEnergyEngine().Probabilities(make([]float32, 1025), SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	if len(probs) != 3 {
		t.Fatalf("got %d frames, want 3", len(probs))
	}
}
