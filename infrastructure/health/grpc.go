package health

import (
	"chat-fanout/runtime/workers"
	"log/slog"
	"net"

	gogrpc "google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported next to the overall ("") status.
const ServiceName = "chat-fanout.Gateway"

// Server exposes the standard gRPC health service. It starts NOT_SERVING
// and follows the reports of the health worker.
type Server struct {
	log    *slog.Logger
	server *gogrpc.Server
	health *grpchealth.Server
}

func NewServer(log *slog.Logger) *Server {
	server := gogrpc.NewServer()
	health := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, health)
	s := &Server{log: log, server: server, health: health}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Report is meant to be registered with HealthWorker.OnReport.
func (s *Server) Report(report workers.HealthReport) {
	if report.Healthy {
		s.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until Stop is called or lis fails.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("Health endpoint listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// Stop reports NOT_SERVING to watchers before closing the listener.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
