// Package http exposes the bulletin, returns and passthrough extraction services over gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServerConfig holds HTTP server configuration. BodyLimit caps request bodies in bytes; 0 disables the cap.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       int64
	AllowedOrigins  []string
}

// DefaultServerConfig returns default server configuration. Write timeout leaves room for
// three vision attempts on a multi-page upload.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            3000,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
		BodyLimit:       50 << 20,
		AllowedOrigins:  []string{"*"},
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, bulletins BulletinAPI, returns ReturnsAPI, extraction ExtractionAPI, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(bulletins, returns, extraction, logger),
		logger:   logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(s.config.AllowedOrigins) == 0 || (len(s.config.AllowedOrigins) == 1 && s.config.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.config.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.ExposeHeaders = []string{"Content-Disposition"}
	s.router.Use(cors.New(corsCfg))

	if s.config.BodyLimit > 0 {
		s.router.Use(bodyLimit(s.config.BodyLimit))
	}
}

// loggingMiddleware writes one access log line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("HTTP request", fields...)
			return
		}
		s.logger.Info("HTTP request", fields...)
	}
}

func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   fmt.Sprintf("request body exceeds %d bytes", limit),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		// Passthrough extraction used by the mobile client
		api.POST("/process-napi-info", h.ProcessBulletinImage)
		api.POST("/process-nf-visszakuldes", h.ProcessManifestImage)

		bulletins := api.Group("/bulletins")
		bulletins.GET("", h.ListBulletins)
		bulletins.GET("/:day", h.GetBulletin)
		bulletins.POST("/:day/pages", h.UploadBulletinPage)
		bulletins.POST("/:day/text", h.SubmitBulletinText)
		bulletins.POST("/:day/blocks/:position/toggle", h.ToggleBulletinBlock)
		api.DELETE("/documents/:id", h.DeleteBulletin)

		api.POST("/maintenance/repair-days", h.RepairDuplicateDays)

		sessions := api.Group("/returns/sessions")
		sessions.POST("", h.StartScanSession)
		sessions.GET("/:id", h.GetScanSession)
		sessions.POST("/:id/pages", h.UploadScanPage)
		sessions.POST("/:id/text", h.SubmitScanText)
		sessions.POST("/:id/cancel", h.CancelScan)
		sessions.POST("/:id/commit", h.CommitScan)
		sessions.DELETE("/:id", h.DiscardScan)

		weeks := api.Group("/returns/weeks/:year/:week")
		weeks.GET("", h.ListWeek)
		weeks.GET("/export", h.ExportWeek)

		manifests := api.Group("/returns/manifests/:id")
		manifests.GET("", h.GetManifest)
		manifests.POST("/items/:code/found", h.RecordFound)
		manifests.PUT("/items/:code/total", h.SetTotal)
		manifests.DELETE("/items/:code/found/:index", h.DeleteFoundEvent)
		manifests.POST("/items/:code/toggle", h.ToggleCollected)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
