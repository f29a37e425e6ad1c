// Package controller exposes the runner over HTTP.
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the runner endpoints on r.
func RegisterRoutes(r gin.IRouter, runs *RunController) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := r.Group("/api/v1")
	api.POST("/runs", runs.Create)
	api.GET("/languages", runs.Languages)
}
