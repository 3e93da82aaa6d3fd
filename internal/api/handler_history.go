package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"safemaint-backend/internal/maintenance"
	"safemaint-backend/internal/model"
)

type historyReport struct {
	Entries  []model.MaintenanceLog `json:"entries"`
	Count    int                    `json:"count"`
	TotalMs  int64                  `json:"totalMs"`
	Total    string                 `json:"total"`
	ByOrigin map[model.Origin]int   `json:"byOrigin"`
}

// GetHistory returns completed activities filtered by ?origin=, ?area=,
// ?tag= and an end-time window ?from=/&to= (RFC 3339), with totals.
func (h *Handler) GetHistory(c *gin.Context) {
	origin := model.Origin(c.Query("origin"))
	area := strings.ToUpper(c.Query("area"))
	tag := strings.ToUpper(c.Query("tag"))

	var from, to time.Time
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			badRequest(c, "invalid from")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			badRequest(c, "invalid to")
			return
		}
	}

	entries := h.Repos.History.Filter(func(l model.MaintenanceLog) bool {
		switch {
		case origin != "" && l.Origin != origin:
			return false
		case area != "" && strings.ToUpper(l.Area) != area:
			return false
		case tag != "" && !strings.Contains(strings.ToUpper(l.Tag), tag):
			return false
		case !from.IsZero() && l.EndTime.Before(from):
			return false
		case !to.IsZero() && l.EndTime.After(to):
			return false
		}
		return true
	})

	report := historyReport{Entries: entries, ByOrigin: map[model.Origin]int{}}
	if report.Entries == nil {
		report.Entries = []model.MaintenanceLog{}
	}
	for _, l := range entries {
		report.Count++
		report.TotalMs += l.DurationMs
		report.ByOrigin[l.Origin]++
	}
	report.Total = maintenance.FormatElapsed(time.Duration(report.TotalMs) * time.Millisecond)
	c.JSON(http.StatusOK, report)
}
