package ipc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Send performs one Control RPC against the owner at path with a deadline.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	conn, err := grpc.NewClient("unix://"+path, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Response{}, fmt.Errorf("create IPC client: %w", err)
	}
	defer conn.Close()

	in, err := toStruct(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := conn.Invoke(callCtx, handleFullMethod, in, out); err != nil {
		return Response{}, fmt.Errorf("invoke %s: %w", handleFullMethod, err)
	}

	var resp Response
	if err := fromStruct(out, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe checks whether a responsive owner is currently listening on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	if err == nil {
		return true, nil
	}
	if IsNoOwner(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// IsNoOwner reports a missing socket or a refused connection.
func IsNoOwner(err error) bool {
	return status.Code(err) == codes.Unavailable
}
