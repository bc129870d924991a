package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pinreport/internal/generator"
)

const (
	msgMissingParameters = "Missing parameters"
	msgInvalidParameters = "Invalid parameters"
	msgNoPins            = "No pins found"
	msgGenerationFailed  = "PDF generation failed"
)

// handleReport serves GET /api/report?projectId=..&selectedIds=1,2,3.
// Errors are plain text bodies.
func (s *Server) handleReport(c *gin.Context) {
	rawProject := strings.TrimSpace(c.Query("projectId"))
	rawSelected := strings.TrimSpace(c.Query("selectedIds"))
	if rawProject == "" || rawSelected == "" {
		c.String(http.StatusBadRequest, msgMissingParameters)
		return
	}

	projectID, pinIDs, err := parseSelection(rawProject, rawSelected)
	if err != nil {
		s.log(c).Warn("invalid report request", slog.String("error", err.Error()))
		c.String(http.StatusBadRequest, msgInvalidParameters)
		return
	}

	logger := s.log(c).With(slog.Int64("project_id", projectID), slog.Int("pins", len(pinIDs)))
	start := time.Now()
	pdf, err := s.reports.Generate(c.Request.Context(), projectID, pinIDs)
	switch {
	case errors.Is(err, generator.ErrNoPins):
		logger.Info("no pins matched")
		c.String(http.StatusNotFound, msgNoPins)
		return
	case err != nil:
		logger.Error("report generation failed", slog.String("error", err.Error()))
		c.String(http.StatusInternalServerError, msgGenerationFailed)
		return
	}

	logger.Info("report generated", slog.Int("bytes", len(pdf)), slog.Duration("took", time.Since(start)))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// parseSelection parses the project id and the comma separated pin ids.
// Blank entries are skipped and duplicates dropped.
func parseSelection(rawProject, rawSelected string) (int64, []int64, error) {
	projectID, err := strconv.ParseInt(rawProject, 10, 64)
	if err != nil || projectID <= 0 {
		return 0, nil, fmt.Errorf("project id %q", rawProject)
	}

	seen := map[int64]bool{}
	var ids []int64
	for _, part := range strings.Split(rawSelected, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return 0, nil, fmt.Errorf("pin id %q", part)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil, errors.New("no pin ids")
	}
	return projectID, ids, nil
}
