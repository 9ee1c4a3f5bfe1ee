package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey              = "exporter"
	serviceName               = "onsetscore.export.v1.Exporter"
	jsonCodecName             = "json"
	methodGetMetadata         = "/" + serviceName + "/GetMetadata"
	methodParticipantComplete = "/" + serviceName + "/ParticipantComplete"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ONSETSCORE_EXPORTER",
	MagicCookieValue: "onsetscore",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type TrialScore struct {
	TrialNumber int32    `json:"trial_number"`
	Word        string   `json:"word"`
	AutoOnsetMs *float64 `json:"auto_onset_ms,omitempty"`
	Accuracy    string   `json:"accuracy"`
	OnsetMs     *float64 `json:"onset_ms,omitempty"`
	OnsetStatus string   `json:"onset_status"`
	Note        string   `json:"note,omitempty"`
}

type ParticipantCompleteRequest struct {
	RaterID         string       `json:"rater_id"`
	DatasetID       string       `json:"dataset_id"`
	ParticipantID   string       `json:"participant_id"`
	CompletedAtUnix int64        `json:"completed_at_unix"`
	Trials          []TrialScore `json:"trials"`
}

type ParticipantCompleteResponse struct {
	Location string `json:"location"`
}

type ExporterServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	ParticipantComplete(ctx context.Context, in *ParticipantCompleteRequest) (*ParticipantCompleteResponse, error)
}

type ExporterClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	ParticipantComplete(ctx context.Context, in *ParticipantCompleteRequest) (*ParticipantCompleteResponse, error)
}

type exporterClient struct {
	conn *grpc.ClientConn
}

func NewExporterClient(conn *grpc.ClientConn) ExporterClient {
	return &exporterClient{conn: conn}
}

func (c *exporterClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exporterClient) ParticipantComplete(ctx context.Context, in *ParticipantCompleteRequest) (*ParticipantCompleteResponse, error) {
	out := &ParticipantCompleteResponse{}
	if err := c.conn.Invoke(ctx, methodParticipantComplete, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterExporterServer(server grpc.ServiceRegistrar, impl ExporterServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ExporterServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "ParticipantComplete",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &ParticipantCompleteRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.ParticipantComplete(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodParticipantComplete}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*ParticipantCompleteRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.ParticipantComplete(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "onsetscore/export/v1/exporter.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl ExporterServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterExporterServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewExporterClient(conn), nil
}

func PluginMap(impl ExporterServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
