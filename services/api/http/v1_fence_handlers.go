package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

const maxFenceBody = 1 << 20

// handleV1GymsInFence returns the locations of the gyms inside the posted
// geofence. The body is GeoJSON, or fence text when sent as text/plain.
// POST /api/v1/gyms/fence?name=&spherical=true
func (s *Server) handleV1GymsInFence(c *gin.Context) {
	spherical := false
	if sphStr := c.Query("spherical"); sphStr != "" {
		val, err := strconv.ParseBool(sphStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spherical parameter"})
			return
		}
		spherical = val
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxFenceBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "fence body too large"})
		return
	}

	name := c.DefaultQuery("name", "request")
	var def geofence.Definition
	if strings.HasPrefix(c.ContentType(), "text/plain") {
		def, err = geofence.ParseText(name, bytes.NewReader(body), nil)
	} else {
		def, err = geofence.ParseGeoJSON(name, body)
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, geofence.ErrEmptyFence) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	var fence db.Geofence = def.Planar()
	if spherical {
		fence = def.Spherical()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.QueryTimeout)
	defer cancel()

	locations, err := db.LocationsInFence(ctx, s.store, fence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	meta := gin.H{
		"count":     len(locations),
		"fence":     def.Name,
		"spherical": spherical,
		"include":   len(def.Include),
		"exclude":   len(def.Exclude),
	}
	if bbox, ok := finiteBoundingBox(fence); ok {
		meta["bbox"] = bbox
	}
	c.JSON(http.StatusOK, gin.H{"data": locations, "meta": meta})
}

// finiteBoundingBox returns the fence bbox as [minLat, minLng, maxLat, maxLng],
// or false when it has no finite extent.
func finiteBoundingBox(fence db.Geofence) ([]float64, bool) {
	minLat, minLng, maxLat, maxLng := fence.BoundingBox()
	bbox := []float64{minLat, minLng, maxLat, maxLng}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return bbox, true
}
