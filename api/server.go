package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 60 * time.Second
)

// NewRouter wires the handler and the metrics endpoint into a gin engine.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", h.Health)
	router.GET("/scraper/scrape", h.Scrape)
	router.GET("/scraper/status", h.Status)
	router.GET("/sections/:section/recipes", h.SectionRecipes)
	router.GET("/recipes/:id", h.Recipe)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// Server is the HTTP server lifecycle around the router.
type Server struct {
	server *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, router http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("starting HTTP server", slog.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			slog.Error("http request with errors", append(attrs, slog.String("errors", c.Errors.String()))...)
			return
		}
		if strings.HasPrefix(path, "/healthz") || path == "/metrics" {
			slog.Debug("http request", attrs...)
			return
		}
		slog.Info("http request", attrs...)
	}
}
