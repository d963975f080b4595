// Package server exposes the detector over gRPC as a single unary RPC. The
// service uses well-known protobuf types so clients need no generated code:
// the request is a BytesValue holding a WAV file and the response is a Struct
// with the segment list.
package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/audio"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/config"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/engine"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/pipeline"
	"github.com/nupi-ai/plugin-vad-timestamps/internal/segment"
)

const (
	ServiceName       = "vad.v1.SpeechTimestamps"
	FullMethodExtract = "/" + ServiceName + "/Extract"
)

// Request metadata keys.
const (
	// MetadataSamplingRate selects the analysis rate (8000 or 16000).
	MetadataSamplingRate = "x-vad-sampling-rate"
	// MetadataConfig carries JSON overrides of threshold,
	// min_silence_duration_ms and speech_pad_ms.
	MetadataConfig = "x-vad-config"
)

// MaxWAVBytes limits the size of one request payload. 64 MB is about 35
// minutes of 16 kHz mono s16le. The gRPC transport limit is set slightly
// above this so oversized requests get a descriptive error.
const MaxWAVBytes = 64 << 20

// SpeechTimestampsServer is the service implemented by Server.
type SpeechTimestampsServer interface {
	Extract(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// ServiceDesc describes vad.v1.SpeechTimestamps for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SpeechTimestampsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// Register adds srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv SpeechTimestampsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpeechTimestampsServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodExtract}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SpeechTimestampsServer).Extract(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements SpeechTimestampsServer on top of a pipeline.Detector.
// Every request gets its own config copy and engine instance, so concurrent
// requests are fully isolated.
type Server struct {
	det      *pipeline.Detector
	log      *slog.Logger
	maxBytes int
}

// New returns a Server backed by det.
func New(det *pipeline.Detector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		det:      det,
		log:      logger.With("component", "server"),
		maxBytes: MaxWAVBytes,
	}
}

// Extract decodes the WAV payload, runs detection and returns
// {"sampling_rate": n, "duration": s, "segments": [{"start": s, "end": s}, ...]}.
func (s *Server) Extract(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	data := req.GetValue()
	if len(data) == 0 {
		return nil, status.Error(codes.InvalidArgument, "request carries no audio")
	}
	if len(data) > s.maxBytes {
		return nil, status.Errorf(codes.ResourceExhausted, "audio payload too large: %d bytes (max %d)", len(data), s.maxBytes)
	}

	// Validate request parameters before creating an engine.
	cfg, err := s.requestConfig(ctx)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "request config: %v", err)
	}

	res, err := s.det.DetectWithConfig(ctx, bytes.NewReader(data), cfg)
	if err != nil {
		return nil, s.statusFromError(err)
	}
	s.log.Info("extraction done",
		"bytes", len(data),
		"sampling_rate", res.SamplingRate,
		"audio_seconds", res.AudioSeconds,
		"segments", len(res.Segments),
	)

	out, err := encodeResult(res)
	if err != nil {
		s.log.Error("encode response", "error", err)
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// requestConfig applies the request metadata to a copy of the base config.
func (s *Server) requestConfig(ctx context.Context) (config.Config, error) {
	cfg := s.det.Config()
	md, _ := metadata.FromIncomingContext(ctx)
	if v := firstValue(md, MetadataSamplingRate); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return config.Config{}, errors.New(MetadataSamplingRate + ": not an integer")
		}
		if err := engine.CheckSampleRate(rate); err != nil {
			return config.Config{}, err
		}
		cfg.SamplingRate = rate
	}
	if err := cfg.ApplyOverrides(firstValue(md, MetadataConfig)); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (s *Server) statusFromError(err error) error {
	switch {
	case errors.Is(err, audio.ErrInvalidWAV),
		errors.Is(err, audio.ErrEmptyAudio),
		errors.Is(err, segment.ErrInvalidInput),
		errors.Is(err, segment.ErrInvalidConfig),
		errors.Is(err, engine.ErrWrongSampleRate):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.log.Error("extraction failed", "error", err)
		return status.Error(codes.Internal, "audio processing failed")
	}
}

func encodeResult(res pipeline.Result) (*structpb.Struct, error) {
	segs := make([]any, len(res.Segments))
	for i, seg := range res.Segments {
		segs[i] = map[string]any{"start": seg.Start, "end": seg.End}
	}
	return structpb.NewStruct(map[string]any{
		"sampling_rate": res.SamplingRate,
		"duration":      res.AudioSeconds,
		"segments":      segs,
	})
}
