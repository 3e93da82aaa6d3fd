package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Sync runs a full resync of the mirror and returns the per-table counts.
func (h *Handler) Sync(c *gin.Context) {
	if h.Deps.Sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync is not configured"})
		return
	}
	report, err := h.Deps.Sync.SyncOnce(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
