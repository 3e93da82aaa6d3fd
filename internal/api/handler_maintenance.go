package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safemaint-backend/internal/maintenance"
	"safemaint-backend/internal/mw"
)

func currentUser(c *gin.Context) string {
	sess, _ := mw.CurrentSession(c)
	return sess.Username
}

// ListMaintenances returns every open session with its elapsed time.
func (h *Handler) ListMaintenances(c *gin.Context) {
	c.JSON(http.StatusOK, h.Maintenance.List())
}

// GetMaintenance returns one open session.
func (h *Handler) GetMaintenance(c *gin.Context) {
	v, err := h.Maintenance.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// StartMaintenance opens a session.
func (h *Handler) StartMaintenance(c *gin.Context) {
	var req maintenance.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	req.User = currentUser(c)

	m, err := h.Maintenance.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// PauseMaintenance pauses a running session.
func (h *Handler) PauseMaintenance(c *gin.Context) {
	m, err := h.Maintenance.Pause(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// PartialMaintenance stops a running session for handoff.
func (h *Handler) PartialMaintenance(c *gin.Context) {
	m, err := h.Maintenance.SetPartial(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ResumeMaintenance restarts a paused or waiting session.
func (h *Handler) ResumeMaintenance(c *gin.Context) {
	m, err := h.Maintenance.Resume(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// CompleteMaintenance closes a session.
func (h *Handler) CompleteMaintenance(c *gin.Context) {
	var req maintenance.CompleteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	req.User = currentUser(c)

	entry, err := h.Maintenance.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type linkOMRequest struct {
	OMID string `json:"omId" binding:"required"`
}

// LinkOM attaches a work order to a session.
func (h *Handler) LinkOM(c *gin.Context) {
	var req linkOMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "omId is required")
		return
	}
	m, err := h.Maintenance.LinkOM(c.Request.Context(), c.Param("id"), req.OMID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
