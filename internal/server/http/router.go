package http

import (
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gin-gonic/gin"
)

// NewRouter wires routes and middleware.
func NewRouter(h *Handler, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))

	r.GET("/healthz", h.Health)

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
	}

	me := r.Group("/users/me", Authenticate(h.svc))
	{
		me.GET("", h.Me)
		me.PUT("", h.UpdateProfile)
		me.DELETE("", h.Deactivate)
		me.PUT("/password", h.ChangePassword)
	}

	return r
}
