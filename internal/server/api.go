package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AnalysisServiceName is the fully qualified gRPC service name.
const AnalysisServiceName = "nagabus.v1.AnalysisService"

// Method names of AnalysisService. Requests and responses are google.protobuf.Struct
// messages; the field names are listed on each server method.
const (
	MethodAnalyzeMajsoul  = "AnalyzeMajsoul"
	MethodAnalyzeTenhou   = "AnalyzeTenhou"
	MethodMonthlyUsage    = "MonthlyUsage"
	MethodRemainingBudget = "RemainingBudget"
	MethodSetCredentials  = "SetCredentials"
	MethodExportUsage     = "ExportUsage"
)

// AnalysisServiceServer is the server API for AnalysisService.
type AnalysisServiceServer interface {
	AnalyzeMajsoul(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnalyzeTenhou(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MonthlyUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemainingBudget(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AnalysisServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + AnalysisServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AnalysisServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnalysisServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AnalysisServiceDesc is the grpc.ServiceDesc for AnalysisService.
var AnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalysisServiceName,
	HandlerType: (*AnalysisServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodAnalyzeMajsoul, AnalysisServiceServer.AnalyzeMajsoul),
		unary(MethodAnalyzeTenhou, AnalysisServiceServer.AnalyzeTenhou),
		unary(MethodMonthlyUsage, AnalysisServiceServer.MonthlyUsage),
		unary(MethodRemainingBudget, AnalysisServiceServer.RemainingBudget),
		unary(MethodSetCredentials, AnalysisServiceServer.SetCredentials),
		unary(MethodExportUsage, AnalysisServiceServer.ExportUsage),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nagabus/v1/analysis.proto",
}

func RegisterAnalysisServiceServer(s grpc.ServiceRegistrar, srv AnalysisServiceServer) {
	s.RegisterService(&AnalysisServiceDesc, srv)
}

// AnalysisServiceClient calls AnalysisService over a client connection.
type AnalysisServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAnalysisServiceClient(cc grpc.ClientConnInterface) *AnalysisServiceClient {
	return &AnalysisServiceClient{cc: cc}
}

// Call invokes method with in and returns the response message.
func (c *AnalysisServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+AnalysisServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
