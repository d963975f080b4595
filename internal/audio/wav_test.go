package audio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func sine(n, rate int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func writeTempWAV(t *testing.T, samples []float32, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := EncodeWAV(f, samples, rate); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileRoundTrip(t *testing.T) {
	in := sine(1600, 16000, 440, 0.5)
	clip, err := LoadFile(writeTempWAV(t, in, 16000), 16000)
	if err != nil {
		t.Fatal(err)
	}
	if clip.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", clip.SampleRate)
	}
	if len(clip.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(clip.Samples), len(in))
	}
	for i := range in {
		if d := math.Abs(float64(clip.Samples[i] - in[i])); d > 1e-3 {
			t.Fatalf("sample %d: got %v, want %v", i, clip.Samples[i], in[i])
		}
	}
	if d := clip.Duration(); math.Abs(d-0.1) > 1e-9 {
		t.Errorf("Duration = %v, want 0.1", d)
	}
}

func TestLoadFileResamples(t *testing.T) {
	clip, err := LoadFile(writeTempWAV(t, sine(8000, 8000, 200, 0.3), 8000), 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Samples) != 16000 {
		t.Fatalf("got %d samples, want 16000", len(clip.Samples))
	}
	if clip.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", clip.SampleRate)
	}
}

func TestLoadFileDownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	// Left +8192, right -8192: the mono mix is silence.
	data := make([]int, 2*100)
	for i := 0; i < 100; i++ {
		data[2*i] = 8192
		data[2*i+1] = -8192
	}
	enc := wav.NewEncoder(f, 16000, 16, 2, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 16000},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	clip, err := LoadFile(path, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Samples) != 100 {
		t.Fatalf("got %d mono samples, want 100", len(clip.Samples))
	}
	for i, s := range clip.Samples {
		if s != 0 {
			t.Fatalf("sample %d = %v, want 0", i, s)
		}
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("definitely not a wav file at all")), 16000)
	if !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("err = %v, want ErrInvalidWAV", err)
	}
}

func TestLoadRejectsBadTargetRate(t *testing.T) {
	if _, err := Load(bytes.NewReader(nil), 0); err == nil {
		t.Fatal("expected error for zero target rate")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.wav"), 16000); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] != &in[0] {
		t.Fatal("identity resample should return the input slice")
	}
}

func TestResampleDownLength(t *testing.T) {
	out, err := Resample(sine(44100, 44100, 300, 0.2), 44100, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 16000 {
		t.Fatalf("got %d samples, want 16000", len(out))
	}
}

// toneBounds returns the first and last index whose magnitude exceeds level.
func toneBounds(samples []float32, level float32) (first, last int) {
	first, last = -1, -1
	for i, s := range samples {
		if s > level || s < -level {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

func TestResampleKeepsToneAligned(t *testing.T) {
	// 440 Hz at half scale from 1.0s to 2.0s of a 3s clip.
	in := make([]float32, 3*44100)
	copy(in[44100:], sine(44100, 44100, 440, 0.5))

	for _, to := range []int{16000, 8000} {
		out, err := Resample(in, 44100, to)
		if err != nil {
			t.Fatal(err)
		}
		first, last := toneBounds(out, 0.25)
		// 1ms of slack covers the tone's own rise to the detection level.
		slack := to / 1000
		if d := first - to; d < -slack || d > slack {
			t.Errorf("%d Hz: onset at sample %d, want %d±%d", to, first, to, slack)
		}
		if d := last - 2*to; d < -slack || d > slack {
			t.Errorf("%d Hz: offset at sample %d, want %d±%d", to, last, 2*to, slack)
		}
	}
}

func TestFilterDelayIsCached(t *testing.T) {
	first, err := filterDelay(22050, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := filterDelays.Load([2]int{22050, 16000}); !ok {
		t.Fatal("delay not cached")
	}
	second, err := filterDelay(22050, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("delay changed between calls: %d then %d", first, second)
	}
}
