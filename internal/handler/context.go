package handler

import (
	"errors"
	"fmt"
	"time"

	"tax_analysis/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Helper to get authenticated user ID from context
func getAuthUserID(c *gin.Context) (int, error) {
	userID, ok := middleware.AuthUserID(c)
	if !ok {
		return 0, errors.New("user ID not found in context")
	}
	return userID, nil
}

func attachment(c *gin.Context, prefix, ext string) {
	fileName := fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("20060102_150405"), ext)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
}
