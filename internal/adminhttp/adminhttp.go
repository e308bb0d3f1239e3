// Package adminhttp serves the supplementary, non-core HTTP surface
// described in the domain-stack expansion of the spec: health, status, and
// a debug store dump, bound to a separate port from the wire-protocol
// listener. It is a direct descendant of the teacher's internal/api
// package — same gin.New() + middleware pairing, with routes registered
// directly on the engine — repurposed from a full CRUD API into an
// observability sidecar, since the actual reads/writes now travel over
// the raw TCP protocol in internal/dispatcher.
package adminhttp

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chordkv/internal/cluster"
)

// Logger is a gin middleware that logs every admin request with method,
// path, status, and latency, grounded on the teacher's api.Logger.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[admin] %s %s | %d | %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Recovery wraps gin's panic recovery with a logged, JSON-shaped response,
// grounded on the teacher's api.Recovery.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[admin] PANIC recovered: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// NewRouter builds the admin HTTP surface for node, grounded on the
// teacher's cmd/server/main.go route registration and /health handler.
func NewRouter(node *cluster.Node) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(Logger(), Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		k, mode := node.Config.Get()
		c.JSON(http.StatusOK, gin.H{
			"self":        node.Self.Addr(),
			"bootstrap":   node.IsBootstrap,
			"predecessor": node.Ring.Predecessor().String(),
			"successor":   node.Ring.Successor().String(),
			"keys":        node.Store.Len(),
			"k":           k,
			"mode":        mode,
		})
	})

	router.GET("/debug/store", func(c *gin.Context) {
		c.JSON(http.StatusOK, node.LocalDebugData())
	})

	return router
}

// Server wraps an http.Server bound to the admin port, mirroring the
// teacher's graceful-shutdown-capable http.Server in cmd/server/main.go.
type Server struct {
	httpServer *http.Server
}

// NewServer builds an admin HTTP server listening on addr.
func NewServer(addr string, node *cluster.Node) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(node),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving admin HTTP requests until the server is
// shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the admin server, waiting up to five seconds for
// in-flight requests to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
