// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"notification-gateway/internal/admission"
	"notification-gateway/internal/common/config"
	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/common/observability"
	"notification-gateway/pkg/templates"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports the health of one named dependency.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP surface of the notification gateway.
type Server struct {
	router      *gin.Engine
	coordinator *admission.Coordinator
	reporter    *admission.Reporter
	registry    *templates.Registry
	checks      map[string]HealthCheck
	logger      logger.Logger
}

// NewServer builds the gin router, wiring auth, correlation and
// observability middleware around the notification endpoints.
func NewServer(
	cfg *config.Config,
	coordinator *admission.Coordinator,
	reporter *admission.Reporter,
	registry *templates.Registry,
	checks map[string]HealthCheck,
	obs *observability.Observability,
	log logger.Logger,
) *Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CorrelationMiddleware())
	if obs != nil {
		router.Use(ObservabilityMiddleware(obs))
	}

	s := &Server{
		router:      router,
		coordinator: coordinator,
		reporter:    reporter,
		registry:    registry,
		checks:      checks,
		logger:      log.WithFields(map[string]interface{}{"component": "api"}),
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1")
	api.Use(AuthMiddleware(cfg.Auth, s.logger))
	{
		api.POST("/notifications", s.handleCreateNotification)
		api.GET("/notifications/:id", s.handleGetNotification)
		api.POST("/notification_status", s.handleUpdateStatus)
	}

	return s
}

// Router exposes the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			healthy = false
			deps[name] = "unhealthy"
			s.logger.Warn("dependency health check failed", map[string]interface{}{
				"dependency": name,
				"error":      err.Error(),
			})
		} else {
			deps[name] = "healthy"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"timestamp":    time.Now().UTC(),
		"dependencies": deps,
	})
}
