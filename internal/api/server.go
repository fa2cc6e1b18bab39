package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/database"
	"github.com/addonhub/addonhub/internal/metrics"
	"github.com/addonhub/addonhub/internal/tasks"
)

// TaskServices groups the migration tasks exposed over the admin API.
type TaskServices struct {
	Themes       *tasks.ThemeBatchMigrator
	Dictionaries *tasks.DictionaryMigrator
	Flagger      *tasks.SensitiveDataFlagger
	Dispatcher   *tasks.Dispatcher
}

type Server struct {
	router      *gin.Engine
	config      *config.Config
	database    *database.Database
	db          *gorm.DB
	taskService TaskServices
	authService *AuthService
	logger      zerolog.Logger
	httpServer  *http.Server
}

func NewServer(cfg *config.Config, db *database.Database, taskService TaskServices, logger zerolog.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	authService := NewAuthService(db.DB(), cfg.JWT.Secret, logger)

	server := &Server{
		router:      router,
		config:      cfg,
		database:    db,
		db:          db.DB(),
		taskService: taskService,
		authService: authService,
		logger:      logger,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// Health check and metrics
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", s.loginHandler)
		}

		// Task dispatch endpoints
		protected := v1.Group("/tasks")
		protected.Use(s.authMiddleware())
		{
			protected.POST("/theme-migrations", s.migrateThemesHandler)
			protected.POST("/dictionary-migrations", s.migrateDictionariesHandler)
			protected.POST("/sensitive-data-flags", s.flagSensitiveDataHandler)
			protected.POST("/last-updated", s.recomputeLastUpdatedHandler)
		}
	}
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying gin engine (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealthy := true
	var dbError string
	if err := s.database.Health(ctx); err != nil {
		dbHealthy = false
		dbError = err.Error()
	}

	status := "healthy"
	if !dbHealthy {
		status = "unhealthy"
	}

	response := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"database": gin.H{
			"healthy": dbHealthy,
			"error":   dbError,
		},
	}

	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
