package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the v1 API
// Groups: /api/v1/gyms, /api/v1/stats
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())

	if s.cfg.BearerToken != "" || s.cfg.JWTSecret != "" {
		v1.Use(authMiddleware(s.cfg.BearerToken, s.cfg.JWTSecret))
	}

	gyms := v1.Group("/gyms")
	{
		gyms.GET("/rectangle", s.handleV1GymsInRectangle)
		gyms.POST("/fence", s.handleV1GymsInFence)
		gyms.GET("/:gym_id", s.handleV1GetGym)
	}

	stats := v1.Group("/stats")
	{
		stats.GET("/gyms/teams", s.handleV1TeamCounts)
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
