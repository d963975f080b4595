package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/output"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/pipeline"
)

func (a *app) batchCmd() *cobra.Command {
	var (
		outDir string
		format string
		jobs   int
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "batch <input.wav>...",
		Short: "Process many WAV files concurrently",
		Long: `Detect speech in every input and write <name>.vad.json (or .vad.srt) next
to it, or into --out-dir. Inputs whose output already exists are skipped
unless --force is given. A failing file does not stop the others; the command
exits non-zero if any file failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			if !cmd.Flags().Changed("jobs") {
				jobs = a.cfg.Concurrency
			}

			var batch []pipeline.Job
			for _, in := range args {
				out := pipeline.OutputPath(in, outDir, f)
				if !force {
					if _, err := os.Stat(out); err == nil {
						fmt.Fprintf(a.stdout, "skip %s: %s exists (use --force to overwrite)\n", in, out)
						continue
					}
				}
				batch = append(batch, pipeline.Job{Input: in, Output: out, Format: f})
			}
			if len(batch) == 0 {
				return nil
			}

			cfg := a.cfg
			cfg.Engine = a.resolveEngine()
			det := pipeline.New(cfg, a.log, pipeline.EngineFactoryFor(cfg), nil)
			a.log.Info("batch started", "files", len(batch), "jobs", jobs, "engine", cfg.Engine)

			failed := 0
			for _, r := range det.Batch(cmd.Context(), batch, jobs) {
				if r.Err != nil {
					failed++
					fmt.Fprintf(a.stdout, "FAIL %s: %v\n", r.Job.Input, r.Err)
					continue
				}
				fmt.Fprintf(a.stdout, "ok   %s -> %s (%d segments)\n", r.Job.Input, r.Job.Output, len(r.Result.Segments))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(batch))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for output files (default: next to each input)")
	cmd.Flags().StringVar(&format, "format", string(output.FormatSamples), "output format: samples, seconds, srt")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing output files")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "files processed in parallel (default: concurrency from config)")
	return cmd
}
