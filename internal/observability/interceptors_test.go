package observability

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeStream struct {
	grpc.ServerStream
}

func (fakeStream) Context() context.Context { return context.Background() }

func TestUnaryServerInterceptor_PassesThrough(t *testing.T) {
	ic := UnaryServerInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	tests := []struct {
		name    string
		handler grpc.UnaryHandler
		want    codes.Code
	}{
		{"ok", func(context.Context, any) (any, error) { return "pong", nil }, codes.OK},
		{"status error", func(context.Context, any) (any, error) {
			return nil, status.Error(codes.Unavailable, "draining")
		}, codes.Unavailable},
		{"plain error", func(context.Context, any) (any, error) { return nil, errors.New("boom") }, codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ic(context.Background(), "ping", info, tt.handler)
			if status.Code(err) != tt.want {
				t.Errorf("code=%v, want %v", status.Code(err), tt.want)
			}
			if err == nil && resp != "pong" {
				t.Errorf("resp=%v, want pong", resp)
			}
		})
	}
}

func TestStreamServerInterceptor_PassesThrough(t *testing.T) {
	ic := StreamServerInterceptor(nil)
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}

	called := false
	err := ic(nil, fakeStream{}, info, func(any, grpc.ServerStream) error {
		called = true
		return status.Error(codes.Canceled, "client left")
	})
	if !called {
		t.Fatal("handler not invoked")
	}
	if status.Code(err) != codes.Canceled {
		t.Errorf("code=%v, want Canceled", status.Code(err))
	}
}
