package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophaccounts.AccountService"

// Full method names.
const (
	MethodRegister        = "/" + ServiceName + "/Register"
	MethodAuthenticate    = "/" + ServiceName + "/Authenticate"
	MethodFetchByHandle   = "/" + ServiceName + "/FetchByHandle"
	MethodDeleteByHandle  = "/" + ServiceName + "/DeleteByHandle"
	MethodMigrate         = "/" + ServiceName + "/Migrate"
	MethodMigrationStatus = "/" + ServiceName + "/MigrationStatus"
	MethodCount           = "/" + ServiceName + "/Count"
)

// AccountServiceServer is the server API of the account service.
type AccountServiceServer interface {
	Register(context.Context, *RegisterRequest) (*Account, error)
	Authenticate(context.Context, *AuthenticateRequest) (*AuthenticateResponse, error)
	FetchByHandle(context.Context, *HandleRequest) (*Account, error)
	DeleteByHandle(context.Context, *HandleRequest) (*Account, error)
	Migrate(context.Context, *Empty) (*MigrateResponse, error)
	MigrationStatus(context.Context, *Empty) (*MigrationStatusResponse, error)
	Count(context.Context, *Empty) (*CountResponse, error)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](fullMethod string, call func(AccountServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var accountServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(MethodRegister, AccountServiceServer.Register)},
		{MethodName: "Authenticate", Handler: unaryHandler(MethodAuthenticate, AccountServiceServer.Authenticate)},
		{MethodName: "FetchByHandle", Handler: unaryHandler(MethodFetchByHandle, AccountServiceServer.FetchByHandle)},
		{MethodName: "DeleteByHandle", Handler: unaryHandler(MethodDeleteByHandle, AccountServiceServer.DeleteByHandle)},
		{MethodName: "Migrate", Handler: unaryHandler(MethodMigrate, AccountServiceServer.Migrate)},
		{MethodName: "MigrationStatus", Handler: unaryHandler(MethodMigrationStatus, AccountServiceServer.MigrationStatus)},
		{MethodName: "Count", Handler: unaryHandler(MethodCount, AccountServiceServer.Count)},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterAccountServiceServer registers srv on s.
func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&accountServiceDesc, srv)
}
