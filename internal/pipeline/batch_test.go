package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/output"
)

func TestOutputPath(t *testing.T) {
	cases := []struct {
		input, dir string
		format     output.Format
		want       string
	}{
		{"/a/b/talk.wav", "/out", output.FormatSamples, "/out/talk.vad.json"},
		{"/a/b/talk.wav", "/out", output.FormatSeconds, "/out/talk.vad.json"},
		{"/a/b/talk.wav", "/out", output.FormatSRT, "/out/talk.vad.srt"},
		{"/a/b/talk.wav", "", output.FormatSamples, "/a/b/talk.vad.json"},
		{"noext", "/out", output.FormatSamples, "/out/noext.vad.json"},
	}
	for _, tc := range cases {
		if got := OutputPath(tc.input, tc.dir, tc.format); got != tc.want {
			t.Errorf("OutputPath(%q, %q, %s) = %q, want %q", tc.input, tc.dir, tc.format, got, tc.want)
		}
	}
}

func TestBatchCollectsPerJobErrors(t *testing.T) {
	dir := t.TempDir()
	good1 := writeWAV(t, dir, "one.wav", twoUtterances)
	good2 := writeWAV(t, dir, "two.wav", synth(10, 20, 10))
	missing := filepath.Join(dir, "missing.wav")

	var jobs []Job
	for _, in := range []string{good1, missing, good2} {
		jobs = append(jobs, Job{Input: in, Output: OutputPath(in, dir, output.FormatSRT), Format: output.FormatSRT})
	}

	d := newTestDetector(t, nil)
	results := d.Batch(context.Background(), jobs, 2)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r.Job != jobs[i] {
			t.Errorf("result %d is for %+v, want %+v", i, r.Job, jobs[i])
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("unexpected errors: %v, %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, os.ErrNotExist) {
		t.Errorf("missing input err = %v, want os.ErrNotExist", results[1].Err)
	}
	if n := len(results[0].Result.Segments); n != 2 {
		t.Errorf("one.wav: %d segments, want 2", n)
	}
	if n := len(results[2].Result.Segments); n != 1 {
		t.Errorf("two.wav: %d segments, want 1", n)
	}

	srt, err := os.ReadFile(filepath.Join(dir, "one.vad.srt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(srt), "1\n00:00:00,482 --> 00:00:01,566\n.\n") {
		t.Errorf("unexpected SRT:\n%s", srt)
	}
}

func TestBatchCanceledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	in := writeWAV(t, dir, "one.wav", twoUtterances)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDetector(t, nil)
	results := d.Batch(ctx, []Job{{Input: in, Output: filepath.Join(dir, "one.json"), Format: output.FormatSamples}}, 0)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", results[0].Err)
	}
}

func TestBatchEmpty(t *testing.T) {
	d := newTestDetector(t, nil)
	if got := d.Batch(context.Background(), nil, 4); len(got) != 0 {
		t.Fatalf("got %d results for no jobs", len(got))
	}
}
