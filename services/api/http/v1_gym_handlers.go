package http

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

// handleV1GetGym returns a single gym
// GET /api/v1/gyms/:gym_id
func (s *Server) handleV1GetGym(c *gin.Context) {
	gymID := c.Param("gym_id")
	if gymID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gym id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.QueryTimeout)
	defer cancel()

	gym, err := db.GetGym(ctx, s.store, gymID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if gym == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gym not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gym,
		"meta": gin.H{
			"team": gym.Team(),
		},
	})
}

// handleV1GymsInRectangle returns gyms with details and raids keyed by gym id
// GET /api/v1/gyms/rectangle?ne_lat=&ne_lng=&sw_lat=&sw_lng=&old_ne_lat=&old_ne_lng=&old_sw_lat=&old_sw_lng=&timestamp=
func (s *Server) handleV1GymsInRectangle(c *gin.Context) {
	var (
		filter db.RectangleFilter
		err    error
	)

	filter.Current, err = rectangleQuery(c, "ne_lat", "ne_lng", "sw_lat", "sw_lng")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter.Previous, err = rectangleQuery(c, "old_ne_lat", "old_ne_lng", "old_sw_lat", "old_sw_lng")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if tsStr := c.Query("timestamp"); tsStr != "" {
		since, err := parseUnixSeconds(tsStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp, expected unix seconds"})
			return
		}
		// zero disables the filter
		if !since.Equal(time.Unix(0, 0)) {
			filter.Since = &since
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.QueryTimeout)
	defer cancel()

	gyms, err := db.GymsInRectangle(ctx, s.store, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	meta := gin.H{
		"count":    len(gyms),
		"current":  filter.Current,
		"previous": filter.Previous,
	}
	if filter.Since != nil {
		meta["since"] = filter.Since.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gyms,
		"meta": meta,
	})
}

// rectangleQuery reads a rectangle from four query parameters. The rectangle
// is only used when all four are present.
func rectangleQuery(c *gin.Context, neLat, neLng, swLat, swLng string) (*db.Rectangle, error) {
	keys := []string{neLat, neLng, swLat, swLng}
	values := make([]float64, len(keys))
	for i, key := range keys {
		raw, ok := c.GetQuery(key)
		if !ok || raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid %s", key)
		}
		values[i] = v
	}

	r := &db.Rectangle{
		NE: geofence.Location{Lat: values[0], Lng: values[1]},
		SW: geofence.Location{Lat: values[2], Lng: values[3]},
	}
	if !r.NE.Valid() || !r.SW.Valid() {
		return nil, fmt.Errorf("%s/%s: %w", neLat, swLat, geofence.ErrInvalidCoordinate)
	}
	return r, nil
}

func parseUnixSeconds(s string) (time.Time, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("invalid unix timestamp %q", s)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}
