package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/metrics"
	"github.com/addonhub/addonhub/internal/tasks"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type taskRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

func (s *Server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := s.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errs.IsValidationError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		s.logger.Error().Err(err).Msg("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// dispatchTask accepts the request, kicks the batch off in the
// background and replies 202 with the accepted id count.
func (s *Server) dispatchTask(c *gin.Context, name string, fn tasks.TaskFunc) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, _ := getUserFromContext(c)
	logger := s.logger.With().Str("task", name).Logger()
	if user != nil {
		logger = logger.With().Uint("requested_by", user.ID).Logger()
	}

	// The request context dies with the response, so background work
	// runs under its own context.
	go func() {
		if err := s.taskService.Dispatcher.Dispatch(context.Background(), req.IDs, name, fn); err != nil {
			metrics.TaskFailures.WithLabelValues(name).Inc()
			logger.Error().Err(err).Msg("Background task failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"task":     name,
		"accepted": len(req.IDs),
	})
}

func (s *Server) migrateThemesHandler(c *gin.Context) {
	s.dispatchTask(c, "migrate_themes", s.taskService.Themes.MigrateBatch)
}

func (s *Server) migrateDictionariesHandler(c *gin.Context) {
	s.dispatchTask(c, "migrate_dictionaries", s.taskService.Dictionaries.MigrateBatch)
}

func (s *Server) flagSensitiveDataHandler(c *gin.Context) {
	s.dispatchTask(c, "flag_sensitive_data", s.taskService.Flagger.Flag)
}

func (s *Server) recomputeLastUpdatedHandler(c *gin.Context) {
	logger := s.logger.With().Str("task", "recompute_last_updated").Logger()

	go func() {
		if err := tasks.RecomputeLastUpdated(context.Background(), s.db, logger); err != nil {
			metrics.TaskFailures.WithLabelValues("recompute_last_updated").Inc()
			logger.Error().Err(err).Msg("Background task failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"task": "recompute_last_updated"})
}
