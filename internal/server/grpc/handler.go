package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*Account, error) {
	a, err := s.accounts.Register(ctx, services.RegisterInput{
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		s.logFailure(ctx, "register", err)
		return nil, toStatus(err)
	}
	out := toAccount(a)
	return &out, nil
}

func (s *GRPCServer) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	res, err := s.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		s.logFailure(ctx, "authenticate", err)
		return nil, toStatus(err)
	}
	return &AuthenticateResponse{Token: res.Token, Account: toAccount(res.Account)}, nil
}

func (s *GRPCServer) FetchByHandle(ctx context.Context, req *HandleRequest) (*Account, error) {
	a, err := s.accounts.FetchByHandle(ctx, req.Handle)
	if err != nil {
		s.logFailure(ctx, "fetch", err)
		return nil, toStatus(err)
	}
	out := toAccount(a)
	return &out, nil
}

// DeleteByHandle only lets callers delete their own account.
func (s *GRPCServer) DeleteByHandle(ctx context.Context, req *HandleRequest) (*Account, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Handle != req.Handle {
		return nil, status.Error(codes.PermissionDenied, "can only delete own account")
	}

	a, err := s.accounts.DeleteByHandle(ctx, req.Handle)
	if err != nil {
		s.logFailure(ctx, "delete", err)
		return nil, toStatus(err)
	}
	out := toAccount(a)
	return &out, nil
}

// requireOperator admits callers whose handle is a configured operator.
func (s *GRPCServer) requireOperator(ctx context.Context) error {
	if claims, ok := ClaimsFromContext(ctx); ok {
		if _, ok := s.operators[claims.Handle]; ok {
			return nil
		}
	}
	return status.Error(codes.PermissionDenied, "operator only")
}

// Migrate reports per-entry failures in the response rather than as an error.
func (s *GRPCServer) Migrate(ctx context.Context, _ *Empty) (*MigrateResponse, error) {
	if err := s.requireOperator(ctx); err != nil {
		return nil, err
	}
	r, err := s.accounts.Migrate(ctx)
	if err != nil && !errors.Is(err, common.ErrMigrationPartialFailure) {
		s.logFailure(ctx, "migrate", err)
		return nil, toStatus(err)
	}
	return &MigrateResponse{
		Total:    r.Total,
		Migrated: r.Migrated,
		Skipped:  r.Skipped,
		Skips:    r.Skips,
		Errors:   r.Errors,
	}, nil
}

func (s *GRPCServer) MigrationStatus(ctx context.Context, _ *Empty) (*MigrationStatusResponse, error) {
	if err := s.requireOperator(ctx); err != nil {
		return nil, err
	}
	st, err := s.accounts.MigrationStatus(ctx)
	if err != nil {
		s.logFailure(ctx, "migration status", err)
		return nil, toStatus(err)
	}
	return &MigrationStatusResponse{
		LegacyCount:     st.LegacyCount,
		StructuredCount: st.StructuredCount,
		Pending:         st.Pending,
		LegacyPresent:   st.LegacyPresent,
	}, nil
}

func (s *GRPCServer) Count(ctx context.Context, _ *Empty) (*CountResponse, error) {
	n, err := s.accounts.Count(ctx)
	if err != nil {
		s.logFailure(ctx, "count", err)
		return nil, toStatus(err)
	}
	return &CountResponse{Count: n}, nil
}

func (s *GRPCServer) logFailure(ctx context.Context, op string, err error) {
	if status.Code(toStatus(err)) == codes.Internal {
		s.logger.Error(ctx, op+" failed", "error", err)
		return
	}
	s.logger.Debug(ctx, op+" rejected", "error", err)
}
