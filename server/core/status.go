package core

import (
	"net/http"

	"github.com/automoto/lockstep/network"
	"github.com/gin-gonic/gin"
)

// StatusSource publishes a session snapshot. *network.Host implements it.
type StatusSource interface {
	Status() network.SessionStatus
}

// SetupRouter serves the read-only status API.
func SetupRouter(src StatusSource) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", healthHandler)
	r.GET("/status", statusHandler(src))
	r.GET("/status/peers", peersHandler(src))

	return r
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func statusHandler(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Status())
	}
}

func peersHandler(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Status().Peers)
	}
}
