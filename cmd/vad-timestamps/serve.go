package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/engine"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/metrics"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/pipeline"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/server"
)

const (
	shutdownTimeout = 5 * time.Second
	envDevMode      = "VAD_DEV_MODE"
)

func (a *app) serveCmd() *cobra.Command {
	var listenAddr, metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve vad.v1.SpeechTimestamps over gRPC",
		Long: `Start the gRPC service. The port is bound and the health service registered
before the engine is probed; health reports NOT_SERVING until the engine is
ready. Prometheus metrics are served on --metrics-addr when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.MetricsAddr = metricsAddr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "gRPC listen address (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for /metrics (disabled when empty)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.log
	logger.Info("starting adapter",
		"adapter", "vad-timestamps",
		"version", version,
		"engine_config", cfg.Engine, // configured value, may be "auto"
		"listen_addr", cfg.ListenAddr,
		"sampling_rate", cfg.SamplingRate,
		"threshold", cfg.Threshold,
		"min_silence_duration_ms", cfg.MinSilenceDurationMs,
		"speech_pad_ms", cfg.SpeechPadMs,
	)

	// Bind before engine init so the port is known as early as possible.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}
	defer lis.Close()
	logger.Info("listener bound, port ready", "addr", lis.Addr().String())

	// Headroom for protobuf framing beyond the WAV payload.
	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(server.MaxWAVBytes + 64*1024),
	)
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)
	setHealth(healthServer, healthgrpc.HealthCheckResponse_NOT_SERVING)

	lazy := &server.Lazy{}
	server.Register(grpcServer, lazy)

	serverErr := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	logger.Info("gRPC server started (NOT_SERVING while initializing)")

	m := metrics.New()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("metrics: %w", err)
			}
		}()
		logger.Info("metrics endpoint enabled", "addr", cfg.MetricsAddr)
	}

	kind, err := a.probeEngine()
	if err != nil {
		grpcServer.Stop()
		if metricsServer != nil {
			metricsServer.Close()
		}
		return err
	}
	cfg.Engine = kind

	det := pipeline.New(cfg, logger, pipeline.EngineFactoryFor(cfg), m)
	lazy.Set(server.New(det, logger))
	setHealth(healthServer, healthgrpc.HealthCheckResponse_SERVING)
	logger.Info("adapter ready to serve requests", "engine", kind)
	if a.ready != nil {
		a.ready(lis.Addr().String())
	}

	var runErr error
	select {
	case runErr = <-serverErr:
		logger.Error("server terminated with error", "error", runErr)
	case <-ctx.Done():
		logger.Info("shutdown requested, stopping gRPC server")
	}

	setHealth(healthServer, healthgrpc.HealthCheckResponse_NOT_SERVING)
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing stop")
		grpcServer.Stop()
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}

	logger.Info("adapter stopped")
	return runErr
}

// probeEngine creates and closes one engine so that a broken model or
// runtime fails at startup rather than on the first request. In auto mode
// with VAD_DEV_MODE=1 a failing Silero probe falls back to the energy engine.
func (a *app) probeEngine() (string, error) {
	kind := a.resolveEngine()
	probe, err := engine.New(kind, a.cfg.ModelPath, a.cfg.SamplingRate)
	if err == nil {
		probe.Close()
		a.log.Info("engine ready", "type", kind)
		return kind, nil
	}

	devMode, _ := a.lookup(envDevMode)
	if a.cfg.Engine == engine.KindAuto && devMode == "1" {
		a.log.Warn("engine probe failed, falling back to energy engine ("+envDevMode+"=1)",
			"error", err,
			"hint", "unset "+envDevMode+" for production behavior")
		return engine.KindEnergy, nil
	}
	if a.cfg.Engine == engine.KindAuto {
		a.log.Error("hint: set " + envDevMode + "=1 to allow fallback to the energy engine")
	}
	return "", fmt.Errorf("engine probe failed, cannot start: %w", err)
}

func setHealth(h *health.Server, st healthgrpc.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", st)
	h.SetServingStatus(server.ServiceName, st)
}
