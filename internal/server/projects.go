package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pinreport/internal/models"
)

// pinSummary is the listing view of a pin, used by clients to build a
// selection for /api/report.
type pinSummary struct {
	ID         int64   `json:"id"`
	PinNumber  int64   `json:"pin_number"`
	Name       string  `json:"name"`
	PlanID     int64   `json:"plan_id"`
	PlanName   string  `json:"plan_name,omitempty"`
	StatusID   *int64  `json:"status_id"`
	CategoryID *int64  `json:"category_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Photos     int     `json:"photos"`
}

// handleGetProject returns a single project.
func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleListPins returns every pin of a project in pin number order.
func (s *Server) handleListPins(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pins, err := s.store.ListPins(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]pinSummary, 0, len(pins))
	for _, p := range pins {
		sum := pinSummary{
			ID:         p.ID,
			PinNumber:  p.PinNumber,
			Name:       p.Name,
			PlanID:     p.PlanID,
			StatusID:   p.StatusID,
			CategoryID: p.CategoryID,
			X:          p.X,
			Y:          p.Y,
			Photos:     len(p.Photos),
		}
		if p.Plan != nil {
			sum.PlanName = p.Plan.Name
		}
		out = append(out, sum)
	}
	respondSuccess(c, http.StatusOK, gin.H{"pins": out})
}
