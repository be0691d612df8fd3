// Package observability serves metrics and health endpoints and instruments
// the gRPC server.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"ai-course-media-service/internal/observability/metrics"
)

// UnaryServerInterceptor records every unary call. Health probes log at
// trace level so they do not flood the output.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observe(ctx, m, info.FullMethod, "unary", start, err)
		return resp, err
	}
}

// StreamServerInterceptor records every stream when it ends.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observe(ss.Context(), m, info.FullMethod, "stream", start, err)
		return err
	}
}

func observe(ctx context.Context, m *metrics.Metrics, method, kind string, start time.Time, err error) {
	duration := time.Since(start)
	code := status.Code(err)
	if m != nil {
		m.RecordGRPCCall(method, kind, code.String(), duration.Seconds())
	}

	level := zerolog.DebugLevel
	switch {
	case method == "/grpc.health.v1.Health/Check" || method == "/grpc.health.v1.Health/Watch":
		level = zerolog.TraceLevel
	case code == codes.Internal || code == codes.Unknown || code == codes.DataLoss:
		level = zerolog.WarnLevel
	}

	ev := log.WithLevel(level).
		Str("method", method).
		Str("kind", kind).
		Str("code", code.String()).
		Dur("duration", duration)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev = ev.Str("peer", p.Addr.String())
	}
	ev.Msg("gRPC call completed")
}
