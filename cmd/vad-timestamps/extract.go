package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/engine"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/output"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/pipeline"
)

func (a *app) extractCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "extract <input.wav> <output> [sampling_rate]",
		Short: "Write the speech segments of one WAV file",
		Long: `Detect speech in <input.wav> and write the segments to <output>.

The output format defaults to JSON sample offsets ([{"start": n, "end": n}]),
or SRT when <output> ends in .srt. sampling_rate is 16000 (default) or 8000;
the input is resampled when its own rate differs.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			cfg := a.cfg
			if len(args) == 3 {
				rate, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("sampling_rate %q is not an integer", args[2])
				}
				if err := engine.CheckSampleRate(rate); err != nil {
					return err
				}
				cfg.SamplingRate = rate
			}

			f := output.FormatForPath(out, output.FormatSamples)
			if cmd.Flags().Changed("format") {
				parsed, err := output.ParseFormat(format)
				if err != nil {
					return err
				}
				f = parsed
			}

			cfg.Engine = a.resolveEngine()
			det := pipeline.New(cfg, a.log, pipeline.EngineFactoryFor(cfg), nil)
			res, err := det.DetectFile(cmd.Context(), in, out, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%d segments, %.3fs of speech in %.3fs of audio\n",
				len(res.Segments), res.SpeechSeconds(), res.AudioSeconds)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(output.FormatSamples), "output format: samples, seconds, srt")
	return cmd
}
