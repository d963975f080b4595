package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/output"
)

// Job is one input file and where to write its segments.
type Job struct {
	Input  string
	Output string
	Format output.Format
}

// JobResult pairs a Job with its outcome.
type JobResult struct {
	Job    Job
	Result Result
	Err    error
}

// OutputPath derives the output file for input inside dir: the input's base
// name with its extension replaced by .vad.json, or .vad.srt for FormatSRT.
// An empty dir keeps the input's directory.
func OutputPath(input, dir string, format output.Format) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	ext := ".vad.json"
	if format == output.FormatSRT {
		ext = ".vad.srt"
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+ext)
}

// Batch runs jobs with at most concurrency in flight. A failing job does not
// stop the others; once ctx is done, jobs not yet started report ctx.Err().
// Results are returned in job order.
func (d *Detector) Batch(ctx context.Context, jobs []Job, concurrency int) []JobResult {
	results := make([]JobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(max(1, concurrency))
	for i, job := range jobs {
		results[i].Job = job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = d.DetectFile(ctx, job.Input, job.Output, job.Format)
			if results[i].Err != nil {
				d.log.Warn("batch job failed", "input", job.Input, "error", results[i].Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
