package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/leafline/internal/logging"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Users is the account surface the gRPC server needs: token resolution for
// the interceptor and the calls behind the identity service.
type Users interface {
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	Logout(ctx context.Context, userID string) error
}

type GRPCServer struct {
	address string
	users   Users
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, users Users) (*GRPCServer, error) {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   users,
		health:  health.NewServer(),
	}, nil
}

// newServer builds the grpc.Server with the interceptor chain and the
// registered services.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&identityServiceDesc, &identityServer{users: s.users})
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
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

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
