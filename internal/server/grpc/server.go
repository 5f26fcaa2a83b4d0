// Package grpc exposes the drive services over gRPC. Requests and responses
// are google.protobuf.Struct messages whose fields follow the JSON shapes in
// dto.go.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hpcdrive.v1.DriveService"

// Authenticator resolves a bearer token to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Caller, error)
}

// Services bundles the application services the handlers dispatch to.
type Services struct {
	Identity Authenticator
	Drive    *services.DriveService
	Sharing  *services.SharingService
	Storage  *services.StorageService
	Signing  *services.SigningService
	Admin    *services.AdminService
}

type GRPCServer struct {
	address string
	svc     Services
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, svc Services) *GRPCServer {
	return &GRPCServer{
		address: a,
		svc:     svc,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.errorInterceptor, s.authInterceptor))

	desc := s.serviceDesc()
	srv.RegisterService(&desc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
