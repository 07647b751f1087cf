// Package grpc exposes the service's gRPC listener. It serves grpc.health.v1 and reports
// SERVING only while the database answers pings.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"social-chat/internal/observability"
)

const (
	defaultCheckInterval = 15 * time.Second
	pingTimeout          = 3 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server wraps the gRPC server and its health service.
type Server struct {
	srv      *grpc.Server
	health   *health.Server
	db       Pinger
	interval time.Duration
	logger   zerolog.Logger
}

// NewServer builds a gRPC server with tracing and metrics interceptors.
func NewServer(db Pinger, interval time.Duration, logger zerolog.Logger) *Server {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		srv:      srv,
		health:   hs,
		db:       db,
		interval: interval,
		logger:   logger.With().Str("component", "grpc_server").Logger(),
	}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc server listening")
	return s.srv.Serve(lis)
}

// WatchHealth refreshes the serving status until ctx is done.
func (s *Server) WatchHealth(ctx context.Context) {
	s.Check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check pings the database once and updates the serving status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			s.logger.Warn().Err(err).Msg("database ping failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	return status
}

// Stop drains in-flight calls and stops the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
