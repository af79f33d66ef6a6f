package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userKey ctxKey = "user"

// protectedMethods need a bearer access token.
var protectedMethods = map[string]bool{
	FullMethod(MethodMe):             true,
	FullMethod(MethodUpdateProfile):  true,
	FullMethod(MethodChangePassword): true,
	FullMethod(MethodDeactivate):     true,
}

// UserFromContext returns the user resolved by the access token interceptor.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(strings.ToLower(common.AuthorizationHeaderName)); len(values) > 0 {
			header = values[0]
		}
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, common.BearerScheme) || token == "" {
		return nil, toStatus(common.ErrUnauthorized)
	}

	user, err := s.auth.CurrentUser(ctx, token)
	if err != nil {
		return nil, s.fail(ctx, info.FullMethod, err)
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	args := []any{"method", info.FullMethod, "code", status.Code(err).String(), "latency", time.Since(start)}
	if err != nil {
		s.logger.Warn(ctx, "rpc", args...)
	} else {
		s.logger.Info(ctx, "rpc", args...)
	}
	return resp, err
}
