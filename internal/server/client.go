package server

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nupi-ai/plugin-vad-timestamps/internal/segment"
)

// Response is the decoded form of an Extract reply.
type Response struct {
	SamplingRate int
	Duration     float64
	Segments     []segment.Segment
}

// Client calls vad.v1.SpeechTimestamps over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ExtractOptions are the optional per-request parameters. Zero values keep
// the server's configuration.
type ExtractOptions struct {
	SamplingRate int
	// ConfigJSON is sent verbatim as MetadataConfig.
	ConfigJSON string
}

// Extract sends one WAV file and decodes the reply.
func (c *Client) Extract(ctx context.Context, wav []byte, opts ExtractOptions, callOpts ...grpc.CallOption) (Response, error) {
	if opts.SamplingRate != 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, MetadataSamplingRate, strconv.Itoa(opts.SamplingRate))
	}
	if opts.ConfigJSON != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, MetadataConfig, opts.ConfigJSON)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodExtract, wrapperspb.Bytes(wav), out, callOpts...); err != nil {
		return Response{}, err
	}
	return DecodeResponse(out)
}

// DecodeResponse converts an Extract reply back into segments.
func DecodeResponse(s *structpb.Struct) (Response, error) {
	fields := s.GetFields()
	resp := Response{
		SamplingRate: int(fields["sampling_rate"].GetNumberValue()),
		Duration:     fields["duration"].GetNumberValue(),
	}
	list := fields["segments"].GetListValue()
	if list == nil {
		return Response{}, fmt.Errorf("server: response has no segments list")
	}
	resp.Segments = make([]segment.Segment, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue().GetFields()
		start, okStart := obj["start"].GetKind().(*structpb.Value_NumberValue)
		end, okEnd := obj["end"].GetKind().(*structpb.Value_NumberValue)
		if !okStart || !okEnd {
			return Response{}, fmt.Errorf("server: segment %d lacks numeric start/end", i)
		}
		resp.Segments = append(resp.Segments, segment.Segment{Start: start.NumberValue, End: end.NumberValue})
	}
	return resp, nil
}
