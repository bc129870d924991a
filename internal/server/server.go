package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pinreport/internal/models"
)

// ProjectStore reads the records exposed by the listing endpoints.
type ProjectStore interface {
	GetProject(ctx context.Context, id int64) (models.Project, error)
	ListPins(ctx context.Context, projectID int64) ([]models.Pin, error)
}

// ReportGenerator produces a PDF for the selected pins of a project.
type ReportGenerator interface {
	Generate(ctx context.Context, projectID int64, pinIDs []int64) ([]byte, error)
}

// Server provides the HTTP handlers of the report service.
type Server struct {
	engine   *gin.Engine
	store    ProjectStore
	reports  ReportGenerator
	logger   *slog.Logger
	filename string
}

// New constructs the HTTP server with routes and middleware configured.
// filename is the name offered in the download's Content-Disposition.
func New(store ProjectStore, reports ReportGenerator, logger *slog.Logger, filename string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if filename == "" {
		filename = "report.pdf"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:   router,
		store:    store,
		reports:  reports,
		logger:   logger,
		filename: filename,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/report", s.recoverReport(), s.handleReport)

		projects := api.Group("/projects")
		{
			projects.GET(":id", s.handleGetProject)
			projects.GET(":id/pins", s.handleListPins)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	s.log(c).Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
