// Package audio decodes RIFF/WAVE input into mono float32 samples at the
// rate the classifier expects.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrInvalidWAV reports input that is not a decodable PCM WAV file.
	ErrInvalidWAV = errors.New("audio: invalid WAV")
	// ErrEmptyAudio reports a WAV file with no samples.
	ErrEmptyAudio = errors.New("audio: no samples")
)

// WAV format tags accepted by Load.
const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Clip is mono audio normalized to [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// LoadFile opens path and calls Load.
func LoadFile(path string, targetRate int) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, targetRate)
}

// Load decodes integer PCM WAV data, averages channels down to mono and
// resamples to targetRate when the source rate differs.
func Load(r io.ReadSeeker, targetRate int) (*Clip, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("audio: target sample rate must be > 0, got %d", targetRate)
	}
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header or fmt chunk", ErrInvalidWAV)
	}
	if f := dec.WavAudioFormat; f != formatPCM && f != formatExtensible {
		return nil, fmt.Errorf("%w: unsupported format tag %d (only integer PCM is supported)", ErrInvalidWAV, f)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read PCM: %v", ErrInvalidWAV, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing channel count or sample rate", ErrInvalidWAV)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	samples, err := toMono(buf, bitDepth)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	if buf.Format.SampleRate != targetRate {
		samples, err = Resample(samples, buf.Format.SampleRate, targetRate)
		if err != nil {
			return nil, err
		}
	}
	return &Clip{Samples: samples, SampleRate: targetRate}, nil
}

// toMono scales interleaved integer samples by the source bit depth and
// averages each frame's channels.
func toMono(buf *goaudio.IntBuffer, bitDepth int) ([]float32, error) {
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}
	channels := buf.Format.NumChannels
	scale := float64(int64(1) << (bitDepth - 1))
	// 8-bit WAV is unsigned; go-audio leaves the raw byte value in Data.
	var offset float64
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range out {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - offset) / scale
		}
		out[i] = float32(sum / float64(channels))
	}
	return out, nil
}

// EncodeWAV writes samples as 16-bit mono PCM. Values outside [-1, 1] are
// clipped.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s) * 32767
		data[i] = int(max(-32768, min(32767, v)))
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, formatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize WAV: %w", err)
	}
	return nil
}
