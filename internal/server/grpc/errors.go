package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrStoreUnavailable):
		return codes.Unavailable
	case errors.Is(err, common.ErrDuplicateEmail):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrPasswordReuse):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidRefreshToken),
		errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenInvalid),
		errors.Is(err, common.ErrTokenTypeMismatch):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrInactiveAccount):
		return codes.PermissionDenied
	case errors.Is(err, common.ErrAccountLocked):
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// toStatus converts a service error into a gRPC status error. Infrastructure
// detail stays in the server log.
func toStatus(err error) error {
	code := codeFor(err)
	msg := err.Error()
	switch code {
	case codes.Unavailable:
		msg = "service temporarily unavailable"
	case codes.Internal:
		msg = "internal error"
	}
	return status.Error(code, msg)
}
