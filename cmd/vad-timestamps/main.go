// Command vad-timestamps extracts speech segments from WAV files, either once
// per invocation (extract, batch) or as a gRPC service (serve).
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/config"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/engine"
)

// version is set at build time by GoReleaser via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds the flag values and the state shared by all subcommands.
type app struct {
	logLevel     string
	engine       string
	model        string
	threshold    float64
	minSilenceMs int
	speechPadMs  int

	lookup func(string) (string, bool)
	stdout io.Writer
	stderr io.Writer

	// ready, when set, is called by serve once requests are accepted.
	ready func(addr string)

	cfg config.Config
	log *slog.Logger
}

func newApp() *app {
	return &app{
		lookup: os.LookupEnv,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vad-timestamps",
		Short: "Speech timestamps from WAV files using voice activity detection",
		Long: `vad-timestamps classifies 32ms frames of a WAV file as speech or silence
and turns them into padded, merged speech segments.

Configuration comes from, in increasing priority: built-in defaults, a YAML
file named by VAD_CONFIG_FILE, a JSON blob in VAD_CONFIG, VAD_* environment
variables, and the flags below.

Examples:
  # Sample offsets as JSON, the default output
  vad-timestamps extract talk.wav talk.json

  # 8 kHz analysis, SubRip output
  vad-timestamps extract talk.wav talk.srt 8000

  # Many files, four at a time
  vad-timestamps batch --out-dir out --jobs 4 *.wav`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.engine, "engine", "", "classifier: auto, silero, energy, stub")
	flags.StringVar(&a.model, "model", "", "path to the Silero VAD ONNX model")
	flags.Float64Var(&a.threshold, "threshold", config.DefaultThreshold, "speech probability threshold")
	flags.IntVar(&a.minSilenceMs, "min-silence-ms", config.DefaultMinSilenceDurationMs, "shorter pauses are merged into the surrounding speech")
	flags.IntVar(&a.speechPadMs, "speech-pad-ms", config.DefaultSpeechPadMs, "padding added to both ends of each segment")

	root.AddCommand(a.extractCmd(), a.batchCmd(), a.serveCmd(), a.toneCmd())
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	res, err := config.Loader{Lookup: a.lookup}.Load()
	if err != nil {
		return err
	}
	cfg := res.Config

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("engine") {
		cfg.Engine = a.engine
	}
	if flags.Changed("model") {
		cfg.ModelPath = a.model
	}
	if flags.Changed("threshold") {
		cfg.Threshold = a.threshold
	}
	if flags.Changed("min-silence-ms") {
		cfg.MinSilenceDurationMs = a.minSilenceMs
	}
	if flags.Changed("speech-pad-ms") {
		cfg.SpeechPadMs = a.speechPadMs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = newLogger(a.stderr, cfg.LogLevel)
	for _, warn := range res.Warnings {
		a.log.Warn(warn)
	}
	return nil
}

// resolveEngine reports which classifier "auto" selects and warns about the
// model-free ones.
func (a *app) resolveEngine() string {
	kind := engine.Resolve(a.cfg.Engine, a.cfg.ModelPath)
	switch {
	case kind == engine.KindStub:
		a.log.Warn("using stub engine: results are deterministic and NOT based on audio content")
	case kind == engine.KindEnergy && a.cfg.Engine == engine.KindAuto:
		a.log.Warn("auto-detected engine: energy (build with -tags silero and set a model path for Silero VAD)")
	}
	return kind
}

func newLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
