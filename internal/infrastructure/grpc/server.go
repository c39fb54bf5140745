package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/wekeepgrowing/paylink/internal/config"
	"github.com/wekeepgrowing/paylink/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves the standard gRPC health service for orchestrators
type Server struct {
	config   *config.GRPCConfig
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewServer(cfg *config.GRPCConfig, log *zap.Logger) *Server {
	server := grpc.NewServer(logger.GrpcServerOptions(log)...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		config: cfg,
		logger: log,
		server: server,
		health: healthServer,
	}
}

// Listen binds the configured address. Start calls it when no listener is set.
func (s *Server) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

func (s *Server) Start() error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}

	s.logger.Info("Starting gRPC server", zap.String("address", s.listener.Addr().String()))
	return s.server.Serve(s.listener)
}

// Shutdown reports NOT_SERVING and drains in-flight calls until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
