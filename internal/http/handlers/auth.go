package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/dinehub/internal/apperr"
	"github.com/geocoder89/dinehub/internal/auth"
	"github.com/geocoder89/dinehub/internal/config"
	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// AuthService is the part of auth.Service the HTTP layer calls.
type AuthService interface {
	Signup(ctx context.Context, attrs principal.SignupAttrs) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (*auth.Session, error)
	ChangePassword(ctx context.Context, id, current, password, passwordConfirm string) (*auth.Session, error)
}

type AuthHandler struct {
	svc     AuthService
	timeout time.Duration

	// called after a merchant signs up so directory caches can be dropped
	onMerchantCreated func()
}

func NewAuthHandler(svc AuthService, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthHandler{svc: svc, timeout: timeout}
}

func (h *AuthHandler) OnMerchantCreated(fn func()) *AuthHandler {
	h.onMerchantCreated = fn
	return h
}

type sessionResponse struct {
	Token string                          `json:"token"`
	Data  map[string]*principal.Principal `json:"data"`
}

func (h *AuthHandler) SignupUser(ctx *gin.Context) {
	var req principal.SignupUserRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.signup(ctx, req.Attrs())
}

func (h *AuthHandler) SignupRestaurant(ctx *gin.Context) {
	var req principal.SignupMerchantRequest
	if !BindJSON(ctx, &req) {
		return
	}
	h.signup(ctx, req.Attrs())
}

func (h *AuthHandler) signup(ctx *gin.Context, attrs principal.SignupAttrs) {
	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	session, err := h.svc.Signup(c, attrs)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	if attrs.Kind == principal.KindMerchant && h.onMerchantCreated != nil {
		h.onMerchantCreated()
	}

	ctx.JSON(http.StatusCreated, sessionResponse{
		Token: session.Token,
		Data:  map[string]*principal.Principal{"principal": session.Principal},
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req principal.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	session, err := h.svc.Login(c, req.Email, req.Password)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"type":  session.Principal.Kind,
		"id":    session.Principal.ID,
		"token": session.Token,
	})
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req principal.ForgotPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.svc.ForgotPassword(c, req.Email); err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Token sent to email!"})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req principal.ResetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	session, err := h.svc.ResetPassword(c, ctx.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": session.Token})
}

// UpdateMyPassword changes the password of the authenticated principal. The
// id in the path must be the caller's own.
func (h *AuthHandler) UpdateMyPassword(ctx *gin.Context) {
	caller, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "You are not logged in")
		return
	}

	id := ctx.Param("id")
	if id != caller.ID {
		RespondAppError(ctx, apperr.Forbidden("you can only change your own password"))
		return
	}

	var req principal.ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	session, err := h.svc.ChangePassword(c, id, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": session.Token})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "You are not logged in")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"principal": p}})
}
