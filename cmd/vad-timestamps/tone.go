package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/audio"
)

func (a *app) toneCmd() *cobra.Command {
	var (
		rate      int
		pattern   string
		freq      float64
		amplitude float64
	)
	cmd := &cobra.Command{
		Use:   "tone <output.wav>",
		Short: "Write a synthetic tone/silence WAV for trying the energy engine",
		Long: `Write a 16-bit mono WAV made of alternating silence and sine tone parts.
--pattern lists the part lengths in milliseconds, starting with silence.`,
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(_ *cobra.Command, args []string) error {
			parts, err := parsePattern(pattern)
			if err != nil {
				return err
			}
			samples := synthesize(parts, rate, freq, amplitude)

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := audio.EncodeWAV(f, samples, rate); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s: %d samples at %d Hz\n", args[0], len(samples), rate)
			return nil
		},
	}
	cmd.Flags().IntVar(&rate, "rate", 16000, "sample rate in Hz")
	cmd.Flags().StringVar(&pattern, "pattern", "500,1000,700,800,500", "comma-separated silence/tone lengths in ms")
	cmd.Flags().Float64Var(&freq, "freq", 440, "tone frequency in Hz")
	cmd.Flags().Float64Var(&amplitude, "amplitude", 0.5, "tone amplitude in (0, 1]")
	return cmd
}

func parsePattern(s string) ([]int, error) {
	var parts []int
	for _, field := range strings.Split(s, ",") {
		ms, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid pattern entry %q: want a non-negative number of milliseconds", field)
		}
		parts = append(parts, ms)
	}
	return parts, nil
}

// synthesize renders parts[0] ms of silence, parts[1] ms of tone, and so on.
func synthesize(partsMs []int, rate int, freq, amplitude float64) []float32 {
	var out []float32
	for i, ms := range partsMs {
		n := ms * rate / 1000
		for j := range n {
			var v float64
			if i%2 == 1 {
				v = amplitude * math.Sin(2*math.Pi*freq*float64(j)/float64(rate))
			}
			out = append(out, float32(v))
		}
	}
	return out
}
