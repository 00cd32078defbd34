package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// controlService adapts a Handler to the Control gRPC service.
type controlService struct {
	handler Handler
}

func (s *controlService) Invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req Request
	if err := fromStruct(in, &req); err != nil {
		return toStruct(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
	}
	return toStruct(s.handler.Handle(ctx, req))
}

// Serve answers Control RPCs on listener until ctx is cancelled.
// In-flight requests finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	server := grpc.NewServer()
	server.RegisterService(&controlServiceDesc, &controlService{handler: handler})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			server.GracefulStop()
		case <-done:
		}
	}()

	err := server.Serve(listener)
	close(done)
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) && ctx.Err() == nil {
		return fmt.Errorf("serve IPC: %w", err)
	}
	return nil
}
