package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/api/middleware"
	"soomhub/market/internal/services"
)

// AuthHandler serves registration and the token lifecycle.
type AuthHandler struct {
	authService services.IAuthService
	userService services.IUserService
	notifier    services.INotifier
}

func NewAuthHandler(authService services.IAuthService, userService services.IUserService, notifier services.INotifier) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService, notifier: notifier}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
	Locale   string `json:"locale" binding:"omitempty,locale"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /v1/auth/register. The captcha is checked by middleware.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Locale:   req.Locale,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err, "Failed to register")
		return
	}
	h.notifier.Welcome(c.Request.Context(), user)

	tokens, _, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Failed to sign in")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "tokens": tokens})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Failed to sign in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// Refresh handles POST /v1/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, "Failed to refresh token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout handles POST /v1/auth/logout. The body is optional.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), middleware.CurrentClaims(c), req.RefreshToken); err != nil {
		respondError(c, err, "Failed to sign out")
		return
	}
	c.Status(http.StatusNoContent)
}
