package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
)

// UserHandler serves the user directory.
type UserHandler struct {
	userRepo repositories.UserRepository
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// ListUsers returns every user except the caller.
func (h *UserHandler) ListUsers(c *gin.Context) {
	userID := c.GetString("userID")

	users, err := h.userRepo.ListUsersExcept(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": publicUsers(users)})
}

// GetUser returns a single user by id.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userRepo.GetUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Public()})
}
