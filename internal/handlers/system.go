package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterSystemRoutes wires the unauthenticated banner and liveness routes.
func RegisterSystemRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":      "Decentralized Secure Messaging API",
			"version":   "1.0.0",
			"status":    "running",
			"endpoints": []string{"/api/test", "/api/auth/register", "/api/auth/login", "/api/users", "/api/chats"},
		})
	})

	router.GET("/api/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "API is working!",
			"status":    "success",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}
