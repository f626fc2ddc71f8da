package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tiergc.v1.Registry"

// RegistryServer is the server API. Messages are protobuf well-known
// types, so no generated code is needed on either side.
type RegistryServer interface {
	Create(context.Context, *structpb.Struct) (*wrapperspb.UInt64Value, error)
	AddRef(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error)
	Release(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error)
	Remove(context.Context, *wrapperspb.UInt64Value) (*emptypb.Empty, error)
	Describe(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	Members(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Collect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Cleanup(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterRegistryServer attaches srv to s.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Create", RegistryServer.Create),
		unary("AddRef", RegistryServer.AddRef),
		unary("Release", RegistryServer.Release),
		unary("Remove", RegistryServer.Remove),
		unary("Describe", RegistryServer.Describe),
		unary("Members", RegistryServer.Members),
		unary("Collect", RegistryServer.Collect),
		unary("Cleanup", RegistryServer.Cleanup),
		unary("Stats", RegistryServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tiergc/v1/registry.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the same handler protoc-gen-go-grpc would generate.
func unary[Req, Resp any](name string, call func(RegistryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RegistryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RegistryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
