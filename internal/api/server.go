// Package api wires the HTTP surface of the backend: routing, middleware
// and graceful shutdown.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/api/handlers"
	"github.com/papercost/papercost-backend/internal/api/middleware"
	appsync "github.com/papercost/papercost-backend/internal/application/sync"
	"github.com/papercost/papercost-backend/internal/infrastructure/config"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the API server. If syncService is nil the sync routes
// are not registered; everything else still works against storage alone.
func NewServer(cfg *config.Config, repo storage.Repository, syncService *appsync.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	s := &Server{cfg: cfg, router: router, logger: logger}
	s.setupRoutes(repo, syncService)
	return s
}

func (s *Server) setupRoutes(repo storage.Repository, syncService *appsync.Service) {
	base := handlers.NewBase(repo)

	healthHandler := handlers.NewHealthHandler(s.cfg)
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/api")

	api.GET("/config", healthHandler.Config)

	invoicesHandler := handlers.NewInvoicesHandler(base)
	api.GET("/invoices", invoicesHandler.List)
	api.GET("/invoices/:id", invoicesHandler.Get)
	api.PUT("/invoices/:id", invoicesHandler.Update)
	api.POST("/invoices/:id/reset", invoicesHandler.Reset)

	manualHandler := handlers.NewManualCostsHandler(base)
	api.POST("/manual-costs", manualHandler.Create)
	api.GET("/manual-costs", manualHandler.List)
	api.PUT("/manual-costs/:id", manualHandler.Update)
	api.POST("/manual-costs/:id/archive", manualHandler.Archive)
	api.DELETE("/manual-costs/:id", manualHandler.Delete)

	reportsHandler := handlers.NewReportsHandler(base)
	api.GET("/summary", reportsHandler.Summary)
	api.GET("/export.csv", reportsHandler.ExportCSV)

	if syncService != nil {
		syncHandler := handlers.NewSyncHandler(base, syncService)
		api.POST("/sync", syncHandler.Start)
		api.GET("/runs", syncHandler.ListRuns)
		api.GET("/runs/:id", syncHandler.GetRun)
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("api server listening", "system", "api", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
