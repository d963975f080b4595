package server

import (
	"context"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Lazy allows the service to be registered before the engine is ready. It
// returns Unavailable until Set is called.
type Lazy struct {
	server atomic.Pointer[SpeechTimestampsServer]
}

// Set installs the real server.
func (l *Lazy) Set(srv SpeechTimestampsServer) {
	l.server.Store(&srv)
}

func (l *Lazy) Extract(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	srv := l.server.Load()
	if srv == nil {
		return nil, status.Error(codes.Unavailable, "VAD service is initializing, please retry in a moment")
	}
	return (*srv).Extract(ctx, req)
}
