// Package grpc exposes the account service over gRPC together with the
// standard health service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Accounts is the part of services.AccountService the transport needs.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*services.AuthResult, error)
	FetchByHandle(ctx context.Context, handle string) (*models.Account, error)
	DeleteByHandle(ctx context.Context, handle string) (*models.Account, error)
	Migrate(ctx context.Context) (*models.MigrationReport, error)
	MigrationStatus(ctx context.Context) (*models.MigrationStatus, error)
	Count(ctx context.Context) (int64, error)
	VerifyToken(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	address   string
	accounts  Accounts
	logger    logging.Logger
	health    *health.Server
	operators map[string]struct{}
}

type Option func(*GRPCServer)

// WithOperators lists the handles allowed to call Migrate and
// MigrationStatus. Without it nobody may.
func WithOperators(handles ...string) Option {
	return func(s *GRPCServer) {
		for _, h := range handles {
			s.operators[h] = struct{}{}
		}
	}
}

func NewGRPCServer(address string, l logging.Logger, accounts Accounts, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		accounts:  accounts,
		health:    health.NewServer(),
		operators: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer builds the grpc.Server with every service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.accessTokenInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)

	RegisterAccountServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
