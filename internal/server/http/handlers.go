// Package http exposes the auth service over a gin JSON API.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/dto"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is the subset of services.AuthService used by the handlers.
type AuthService interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AccessToken, error)
	Logout(ctx context.Context, refreshToken string)
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, name string) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	Deactivate(ctx context.Context, userID int64) error
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	svc AuthService
	db  Pinger
}

func NewHandler(svc AuthService, db Pinger) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.svc.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.Public())
}

func (h *Handler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLoginResponse(res))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bind(c, &req) {
		return
	}
	tok, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRefreshResponse(tok))
}

// Logout always answers 200 for a well-formed request.
func (h *Handler) Logout(c *gin.Context) {
	var req dto.RefreshRequest
	if !bind(c, &req) {
		return
	}
	h.svc.Logout(c.Request.Context(), req.RefreshToken)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, common.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, common.ErrUnauthorized)
		return
	}
	var req dto.UpdateProfileRequest
	if !bind(c, &req) {
		return
	}
	var name string
	if req.Name != nil {
		name = *req.Name
	}
	updated, err := h.svc.UpdateProfile(c.Request.Context(), user.ID, name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Public())
}

func (h *Handler) ChangePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, common.ErrUnauthorized)
		return
	}
	var req dto.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	err := h.svc.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, common.ErrInvalidCredentials) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_current_password",
			Message: "current password is incorrect",
		})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "password changed"})
}

func (h *Handler) Deactivate(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, common.ErrUnauthorized)
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), user.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "account deactivated"})
}

func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			abortWithError(c, common.StoreError("ping", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
