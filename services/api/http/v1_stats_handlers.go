package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/gymfence/services/api/db"
)

// handleV1TeamCounts returns the number of gyms per team label
// GET /api/v1/stats/gyms/teams
func (s *Server) handleV1TeamCounts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.QueryTimeout)
	defer cancel()

	counts, err := db.GymCountByTeam(ctx, s.store)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"data": counts,
		"meta": gin.H{
			"total":        total,
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
