package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/dto"
	"github.com/gin-gonic/gin"
)

// RetryAfterSeconds is advertised with 503 responses.
const RetryAfterSeconds = 5

// statusFor maps a service error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, "duplicate_email"
	case errors.Is(err, common.ErrWeakPassword):
		return http.StatusBadRequest, "weak_password"
	case errors.Is(err, common.ErrPasswordReuse):
		return http.StatusBadRequest, "password_reuse"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, common.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "invalid_refresh_token"
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenInvalid),
		errors.Is(err, common.ErrTokenTypeMismatch):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrInactiveAccount):
		return http.StatusForbidden, "inactive_account"
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusLocked, "account_locked"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// abortWithError writes the JSON error body for err and stops the chain.
// Internal failures are reported with a generic message.
func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	body := ErrorResponse{Error: code, Message: err.Error()}

	var weak *common.WeakPasswordError
	if errors.As(err, &weak) {
		body.Violations = weak.Violations
	}
	var locked *common.AccountLockedError
	if errors.As(err, &locked) && locked.Until != nil {
		body.LockedUntil = locked.Until.UTC().Format(time.RFC3339)
	}

	switch status {
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
		body.Message = "service temporarily unavailable"
	case http.StatusInternalServerError:
		body.Message = "internal server error"
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", common.BearerScheme)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func abortWithValidation(c *gin.Context, fields []dto.FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_failed",
		Message: "request validation failed",
		Fields:  fields,
	})
}

// bind decodes the JSON body into req and validates it. It writes the 400
// response itself and reports false on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_payload",
			Message: "invalid request payload",
		})
		return false
	}
	if fields := dto.Validate(req); len(fields) > 0 {
		abortWithValidation(c, fields)
		return false
	}
	return true
}
