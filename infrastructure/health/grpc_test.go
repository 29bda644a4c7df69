package health

import (
	"chat-fanout/runtime/workers"
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	server := NewServer(logs.GetLoggerFromLevel(slog.LevelError))
	lis := bufconn.Listen(1024 * 1024)
	go func() { _ = server.Serve(lis) }()

	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return server, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_Follows_Health_Reports(t *testing.T) {
	req := require.New(t)
	server, client := startServer(t)

	// Not serving before the first report
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	server.Report(workers.HealthReport{Healthy: true})
	req.Equal(healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))
	req.Equal(healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	server.Report(workers.HealthReport{Healthy: false})
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}
