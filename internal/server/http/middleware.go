package http

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey   = "request_id"
	currentUserKey = "current_user"
)

// RequestLogger assigns or propagates X-Request-ID and logs every request
// once it has been served.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	if log == nil {
		log = logging.Nop{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", requestID,
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if u, ok := CurrentUser(c); ok {
			args = append(args, "user_id", u.ID)
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Error())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.Error(ctx, "http_request", args...)
		case status >= 400:
			log.Warn(ctx, "http_request", args...)
		default:
			log.Info(ctx, "http_request", args...)
		}
	}
}

// Authenticate requires a bearer access token and stores the resolved user
// in the gin context.
func Authenticate(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if !ok {
			abortWithError(c, common.ErrUnauthorized)
			return
		}
		user, err := svc.CurrentUser(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user placed by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
