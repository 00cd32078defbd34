package ipc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName      = "smartspeak.ipc.Control"
	handleMethodName = "Handle"
	handleFullMethod = "/" + serviceName + "/" + handleMethodName
)

// controlServer is the server-side contract of the Control service.
type controlServer interface {
	Invoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func controlHandleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: handleFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: handleMethodName,
			Handler:    controlHandleHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smartspeak/ipc/control.proto",
}
