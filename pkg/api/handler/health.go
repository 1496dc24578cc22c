package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyops/isebridge/pkg/api/dto"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Health godoc
// @Summary      Health check
// @Description  Returns server health and version
// @Tags         global
// @Produce      json
// @Success      200 {object} dto.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// Root reports liveness on the bare path, matching what webhook senders
// probe before registration.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "isebridge server is running"})
}
