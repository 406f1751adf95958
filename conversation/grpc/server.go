package grpc

import (
	"context"
	"fmt"
	"net"

	"campus-found/backend/pkg/health"
	"campus-found/backend/pkg/logger"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server exposes the standard gRPC health service so that load balancers and
// orchestrators can health-check the conversation service without HTTP
type Server struct {
	srv     *grpc.Server
	health  *grpchealth.Server
	service string
	log     *logger.Logger
}

// NewServer creates a gRPC server whose serving status follows checker
func NewServer(checker *health.Checker, serviceName string, log *logger.Logger) *Server {
	s := &Server{
		srv:     grpc.NewServer(),
		health:  grpchealth.NewServer(),
		service: serviceName,
		log:     log,
	}

	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)

	s.setServing(checker.IsSystemHealthy())
	checker.OnChange(s.setServing)

	return s
}

func (s *Server) setServing(healthy bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
	s.log.Info("gRPC serving status changed", "service", s.service, "status", status.String())
}

// Serve accepts connections on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on the given port and serves
func (s *Server) ListenAndServe(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.Serve(lis)
}

// Stop drains in-flight calls, forcing a stop when ctx expires
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}
