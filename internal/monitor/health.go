package monitor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/tldetector/internal/monitoring"
	"github.com/banshee-data/tldetector/internal/timeutil"
)

// ServiceName is the health service name reported alongside the overall
// ("") status.
const ServiceName = "tldetector.Detector"

// DefaultHealthPollInterval is how often readiness is re-evaluated.
const DefaultHealthPollInterval = 250 * time.Millisecond

// HealthServer is a gRPC server carrying the standard health service.
// Status is NOT_SERVING until the readiness function reports true.
type HealthServer struct {
	health   *health.Server
	ready    func() bool
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	serving  atomic.Bool
	wg       sync.WaitGroup
}

// NewHealthServer creates a health server reporting ready().
func NewHealthServer(ready func() bool) *HealthServer {
	hs := &HealthServer{health: health.NewServer(), ready: ready}
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Health returns the underlying health service implementation.
func (hs *HealthServer) Health() *health.Server {
	return hs.health
}

// Sync re-evaluates readiness and updates the reported status when it
// changed. It returns the current readiness.
func (hs *HealthServer) Sync() bool {
	ready := hs.ready != nil && hs.ready()
	if hs.serving.Swap(ready) == ready {
		return ready
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus("", status)
	hs.health.SetServingStatus(ServiceName, status)
	monitoring.Logf("[health] status now %s", status)
	return ready
}

// Watch calls Sync every interval on clock until ctx is cancelled. A nil
// clock uses the real clock.
func (hs *HealthServer) Watch(ctx context.Context, clock timeutil.Clock, interval time.Duration) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultHealthPollInterval
	}

	hs.Sync()
	for {
		timer := clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
			hs.Sync()
		}
	}
}

// Start binds addr and serves the health service in the background.
func (hs *HealthServer) Start(addr string) error {
	if hs.running.Load() {
		return fmt.Errorf("health server already running")
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	hs.listener = lis
	hs.server = grpc.NewServer()
	healthpb.RegisterHealthServer(hs.server, hs.health)
	hs.running.Store(true)

	hs.wg.Add(1)
	go func() {
		defer hs.wg.Done()
		monitoring.Logf("[health] gRPC server listening on %s", lis.Addr())
		if err := hs.server.Serve(lis); err != nil && hs.running.Load() {
			monitoring.Logf("[health] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (hs *HealthServer) Addr() net.Addr {
	if hs.listener == nil {
		return nil
	}
	return hs.listener.Addr()
}

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (hs *HealthServer) Stop() {
	if !hs.running.Load() {
		return
	}
	hs.running.Store(false)
	hs.health.Shutdown()
	hs.server.GracefulStop()
	hs.wg.Wait()
	monitoring.Logf("[health] gRPC server stopped")
}
