package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gophauth.AuthService"

// Method names. Requests and responses are google.protobuf.Struct values
// carrying the same JSON fields as the HTTP API.
const (
	MethodRegister       = "Register"
	MethodLogin          = "Login"
	MethodRefresh        = "Refresh"
	MethodLogout         = "Logout"
	MethodMe             = "Me"
	MethodUpdateProfile  = "UpdateProfile"
	MethodChangePassword = "ChangePassword"
	MethodDeactivate     = "Deactivate"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServer is the server API for gophauth.AuthService.
type AuthServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deactivate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuthServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes gophauth.AuthService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		methodHandler(MethodRegister, AuthServer.Register),
		methodHandler(MethodLogin, AuthServer.Login),
		methodHandler(MethodRefresh, AuthServer.Refresh),
		methodHandler(MethodLogout, AuthServer.Logout),
		methodHandler(MethodMe, AuthServer.Me),
		methodHandler(MethodUpdateProfile, AuthServer.UpdateProfile),
		methodHandler(MethodChangePassword, AuthServer.ChangePassword),
		methodHandler(MethodDeactivate, AuthServer.Deactivate),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterAuthServer registers srv on s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls gophauth.AuthService over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a JSON-like request body.
func (c *Client) Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
