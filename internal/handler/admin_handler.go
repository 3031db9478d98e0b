package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"tax_analysis/internal/model"
	"tax_analysis/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles account management for admins
type AdminHandler struct {
	service service.AdminService
}

func NewAdminHandler(s service.AdminService) *AdminHandler {
	return &AdminHandler{service: s}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list users"})
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actorID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user ID"})
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), actorID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrCannotDeleteSelf):
			c.JSON(http.StatusBadRequest, gin.H{"message": "You cannot delete your own account"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		default:
			log.Printf("ERROR: delete user %d: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete user"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// RegisterAdminRoutes registers admin routes
func (h *AdminHandler) RegisterAdminRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	adminGroup := rg.Group("/admin")
	adminGroup.Use(authMW, adminMW)
	{
		adminGroup.GET("/users", h.ListUsers)
		adminGroup.DELETE("/users/:id", h.DeleteUser)
	}
}
