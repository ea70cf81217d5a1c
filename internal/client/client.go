// Package client is a Go client for the account gRPC service. It keeps the
// token from the last successful Login and attaches it to every call.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	gs "github.com/dmitrijs2005/gophaccounts/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	conn *grpc.ClientConn

	mu          sync.RWMutex
	accessToken string
}

// NewGRPCClient connects lazily to endpoint. Extra options are appended to
// the defaults (insecure transport, JSON codec, token interceptor).
func NewGRPCClient(endpoint string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := c.Token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// Token returns the current access token, or "".
func (c *GRPCClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetToken installs a token obtained elsewhere.
func (c *GRPCClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, reply any) error {
	err := c.conn.Invoke(ctx, method, req, reply, grpc.CallContentSubtype(gs.CodecName))
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (c *GRPCClient) Register(ctx context.Context, req *gs.RegisterRequest) (*gs.Account, error) {
	var out gs.Account
	if err := c.invoke(ctx, gs.MethodRegister, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and keeps the issued token for later calls.
func (c *GRPCClient) Login(ctx context.Context, email, password string) (*gs.AuthenticateResponse, error) {
	var out gs.AuthenticateResponse
	if err := c.invoke(ctx, gs.MethodAuthenticate, &gs.AuthenticateRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *GRPCClient) authed() error {
	if c.Token() == "" {
		return ErrNotLoggedIn
	}
	return nil
}

func (c *GRPCClient) Fetch(ctx context.Context, handle string) (*gs.Account, error) {
	if err := c.authed(); err != nil {
		return nil, err
	}
	var out gs.Account
	if err := c.invoke(ctx, gs.MethodFetchByHandle, &gs.HandleRequest{Handle: handle}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) Delete(ctx context.Context, handle string) (*gs.Account, error) {
	if err := c.authed(); err != nil {
		return nil, err
	}
	var out gs.Account
	if err := c.invoke(ctx, gs.MethodDeleteByHandle, &gs.HandleRequest{Handle: handle}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) Count(ctx context.Context) (int64, error) {
	if err := c.authed(); err != nil {
		return 0, err
	}
	var out gs.CountResponse
	if err := c.invoke(ctx, gs.MethodCount, &gs.Empty{}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *GRPCClient) Migrate(ctx context.Context) (*gs.MigrateResponse, error) {
	if err := c.authed(); err != nil {
		return nil, err
	}
	var out gs.MigrateResponse
	if err := c.invoke(ctx, gs.MethodMigrate, &gs.Empty{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) MigrationStatus(ctx context.Context) (*gs.MigrationStatusResponse, error) {
	if err := c.authed(); err != nil {
		return nil, err
	}
	var out gs.MigrationStatusResponse
	if err := c.invoke(ctx, gs.MethodMigrationStatus, &gs.Empty{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping asks the health service whether the account service is serving.
func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: gs.ServiceName})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// mapError turns a status error back into the matching sentinel, keeping the
// server's message.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var kind error
	switch st.Code() {
	case codes.InvalidArgument:
		kind = common.ErrValidationFailed
	case codes.AlreadyExists:
		kind = common.ErrDuplicateIdentity
	case codes.NotFound:
		kind = common.ErrNotFound
	case codes.PermissionDenied:
		if strings.HasPrefix(st.Message(), common.ErrAccountLocked.Error()) {
			kind = common.ErrAccountLocked
		} else {
			kind = ErrUnauthorized
		}
	case codes.Unauthenticated:
		kind = ErrUnauthorized
	case codes.Aborted:
		kind = common.ErrMigrationInProgress
	case codes.Unavailable:
		kind = ErrUnavailable
	default:
		return err
	}
	return fmt.Errorf("%w: %s", kind, st.Message())
}
