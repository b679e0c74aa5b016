// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mihir-logicrays/drive-it/internal/http/handlers"
	"github.com/mihir-logicrays/drive-it/internal/http/middleware"
)

type ServerDeps struct {
	Paths    handlers.PathSelector
	Gatherer prometheus.Gatherer
}

type Server struct {
	paths    handlers.PathSelector
	gatherer prometheus.Gatherer
}

func NewServer(deps ServerDeps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{paths: deps.Paths, gatherer: deps.Gatherer}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	pathHandler := handlers.NewPathHandler(s.paths)
	r.POST("/api/paths/select", pathHandler.Select)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
