package cmd

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrwilson/substrate/internal/meta"
	"github.com/jrwilson/substrate/storage"
	"github.com/jrwilson/substrate/transport"
)

// RegisterRoutes adds the side API next to the RFB listeners: health,
// build info, session status, metrics and the WebSocket endpoint.
func RegisterRoutes(
	router *gin.Engine,
	store storage.Store,
	gatherer prometheus.Gatherer,
	ws *transport.WebSocket,
) {
	// Ping test
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, meta.GetInfo())
	})

	router.GET("/sessions", func(c *gin.Context) {
		sessions, err := store.Snapshot()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}

		c.Data(http.StatusOK, "application/json", sessions)
	})

	router.GET("/sessions/:id", func(c *gin.Context) {
		status, err := store.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}

		c.Data(http.StatusOK, "application/json", status)
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if ws != nil {
		router.GET("/ws", ws.Handle)
	}
}
