package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type downtimeStartBody struct {
	Reason string `json:"reason"`
}

func (s *Server) HandleDowntimeStart(c *gin.Context) {
	var body downtimeStartBody
	_ = c.ShouldBindJSON(&body)

	s.tracker.RecordDowntimeStart(c.Request.Context(), body.Reason)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) HandleDowntimeEnd(c *gin.Context) {
	s.tracker.RecordDowntimeEnd(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) HandleUptime(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("window_hours", "720"))
	if err != nil || hours <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	percent, err := s.tracker.UptimePercent(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window_hours":   hours,
		"uptime_percent": percent,
	})
}
