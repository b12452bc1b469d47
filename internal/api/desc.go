package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "zfetch.v1.FetchService"

// FetchServer is the server side of zfetch.v1.FetchService. Requests and
// replies are google.protobuf.Struct documents; the typed shapes live in
// types.go.
type FetchServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Initialize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadNewer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadOlder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Narrow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Unnarrow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

// RegisterFetchServer registers srv with a gRPC server.
func RegisterFetchServer(s grpc.ServiceRegistrar, srv FetchServer) {
	s.RegisterService(&fetchServiceDesc, srv)
}

type unaryMethod func(FetchServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var fetchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FetchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unaryHandler("GetStatus", FetchServer.GetStatus)},
		{MethodName: "Initialize", Handler: unaryHandler("Initialize", FetchServer.Initialize)},
		{MethodName: "LoadNewer", Handler: unaryHandler("LoadNewer", FetchServer.LoadNewer)},
		{MethodName: "LoadOlder", Handler: unaryHandler("LoadOlder", FetchServer.LoadOlder)},
		{MethodName: "Narrow", Handler: unaryHandler("Narrow", FetchServer.Narrow)},
		{MethodName: "Unnarrow", Handler: unaryHandler("Unnarrow", FetchServer.Unnarrow)},
		{MethodName: "ListMessages", Handler: unaryHandler("ListMessages", FetchServer.ListMessages)},
		{MethodName: "SearchMessages", Handler: unaryHandler("SearchMessages", FetchServer.SearchMessages)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "zfetch/v1/fetch.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler(name string, m unaryMethod) grpc.MethodHandler {
	method := fullMethod(name)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(FetchServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(FetchServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FetchServer).WatchEvents(in, stream)
}

// encode converts a JSON-tagged Go value into a Struct.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// decode fills a JSON-tagged Go value from a Struct. A nil Struct leaves v
// untouched.
func decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func reply(v any) (*structpb.Struct, error) {
	s, err := encode(v)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return s, nil
}

func parse(in *structpb.Struct, v any) error {
	if err := decode(in, v); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}
