package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/services"
)

// UserHandler handles REST requests related to users.
type UserHandler struct {
	userService services.IUserService
}

func NewUserHandler(userService services.IUserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type UpdateUserRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=120"`
	Phone  *string `json:"phone" binding:"omitempty,max=32"`
	Locale *string `json:"locale" binding:"omitempty,locale"`
}

// GetUser handles GET /v1/users/:id with the public profile.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}

// GetMe handles GET /v1/users/me.
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers handles GET /v1/users (admin).
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, next, err := h.userService.ListUsers(c.Request.Context(), pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list users")
		return
	}
	respondPage(c, users, next)
}

// UpdateMe handles PUT /v1/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), userID, services.UserUpdate{
		Name:   req.Name,
		Phone:  req.Phone,
		Locale: req.Locale,
	})
	if err != nil {
		respondError(c, err, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteMe handles DELETE /v1/users/me.
func (h *UserHandler) DeleteMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		respondError(c, err, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteUser handles DELETE /v1/users/:id (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		respondError(c, err, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}
