package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/middleware"
	"github.com/bioeq-design-server/internal/report"
	"github.com/bioeq-design-server/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthCheck probes one backing service
type HealthCheck func(ctx context.Context) error

// Dependencies are the services behind the HTTP routes
type Dependencies struct {
	Projects   domain.ProjectStore
	Pipeline   *service.PipelineRunner
	Designs    *service.DesignService
	Compliance *service.ComplianceService
	Reports    *report.Service
	Checks     map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		router:        router,
		logger:        logger,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/search/start", s.handleStartSearch)
		v1.GET("/search/results/:project_id", s.handleSearchResults)
		v1.GET("/projects/:project_id", s.handleGetProject)

		v1.POST("/design/calculate", s.handleCalculateDesign)
		v1.POST("/design/:project_id/generate", s.handleGenerateDesign)

		v1.GET("/regulatory/:project_id", s.handleRegulatoryCheck)

		v1.POST("/reports/:project_id", s.handleGenerateReport)
		v1.GET("/reports/:project_id", s.handleGetReport)
	}
}

// respondError writes err as an APIError with the status derived from its code
func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := domain.HTTPStatus(code)
	message := err.Error()

	entry := s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"path":           c.FullPath(),
		"code":           code,
		"error":          err,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
		if code == domain.CodeInternalServer {
			message = "internal server error"
		}
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, "", c.GetString(middleware.CorrelationIDKey)))
}
