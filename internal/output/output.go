// Package output serializes speech segments as JSON (sample offsets or
// seconds) or as an SRT subtitle file with one placeholder cue per segment.
package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/segment"
)

// Format selects the external representation of a segment list.
type Format string

const (
	// FormatSamples is [{"start": int, "end": int}] in sample offsets.
	FormatSamples Format = "samples"
	// FormatSeconds is [{"start": float, "end": float}] in seconds.
	FormatSeconds Format = "seconds"
	// FormatSRT is a SubRip file with SRTCueText as every cue's text.
	FormatSRT Format = "srt"
)

// SRTCueText is the text written for every SRT cue.
const SRTCueText = "."

// ErrUnknownFormat is returned by ParseFormat for unrecognized names.
var ErrUnknownFormat = errors.New("output: unknown format")

// ParseFormat accepts samples, seconds or srt (case-insensitive). The empty
// string maps to FormatSamples.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatSamples, nil
	case FormatSamples, FormatSeconds, FormatSRT:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (want samples, seconds or srt)", ErrUnknownFormat, s)
	}
}

// FormatForPath returns FormatSRT for a .srt path and fallback otherwise.
func FormatForPath(path string, fallback Format) Format {
	if strings.EqualFold(filepath.Ext(path), ".srt") {
		return FormatSRT
	}
	return fallback
}

type sampleSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Write encodes segs to w. samplingRate is only used by FormatSamples.
func Write(w io.Writer, format Format, segs []segment.Segment, samplingRate int) error {
	switch format {
	case FormatSamples:
		if samplingRate <= 0 {
			return fmt.Errorf("output: sampling rate must be > 0 for %s format", format)
		}
		spans := make([]sampleSpan, len(segs))
		for i, s := range segs {
			spans[i].Start, spans[i].End = s.Samples(samplingRate)
		}
		return writeJSON(w, spans)
	case FormatSeconds:
		if segs == nil {
			segs = []segment.Segment{}
		}
		return writeJSON(w, segs)
	case FormatSRT:
		return writeSRT(w, segs)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("output: encode json: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("output: write json: %w", err)
	}
	return nil
}

func writeSRT(w io.Writer, segs []segment.Segment) error {
	bw := bufio.NewWriter(w)
	for i, s := range segs {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(s.Start), srtTimestamp(s.End), SRTCueText)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("output: write srt: %w", err)
	}
	return nil
}

// srtTimestamp formats seconds as HH:MM:SS,mmm rounded to the millisecond.
func srtTimestamp(seconds float64) string {
	d := time.Duration(math.Round(seconds*1000)) * time.Millisecond
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, d/time.Millisecond)
}

// WriteFile writes segs to path through a temp file in the same directory,
// renamed into place once fully written.
func WriteFile(path string, format Format, segs []segment.Segment, samplingRate int) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("output: create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = Write(tmp, format, segs, samplingRate); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("output: close temp for %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("output: rename into %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes a list written in FormatSamples or FormatSeconds back into
// segments in seconds.
func ReadJSON(r io.Reader, format Format, samplingRate int) ([]segment.Segment, error) {
	var spans []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}
	if err := json.NewDecoder(r).Decode(&spans); err != nil {
		return nil, fmt.Errorf("output: decode json: %w", err)
	}
	scale := 1.0
	switch format {
	case FormatSamples:
		if samplingRate <= 0 {
			return nil, fmt.Errorf("output: sampling rate must be > 0 for %s format", format)
		}
		scale = float64(samplingRate)
	case FormatSeconds:
	default:
		return nil, fmt.Errorf("%w %q for json input", ErrUnknownFormat, format)
	}
	segs := make([]segment.Segment, len(spans))
	for i, s := range spans {
		segs[i] = segment.Segment{Start: s.Start / scale, End: s.End / scale}
	}
	return segs, nil
}
