package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safemaint-backend/internal/auth"
	"safemaint-backend/internal/mw"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and opens a session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	sess, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	maxAge := int(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(mw.SessionCookie, sess.Token, maxAge, "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "user": sess})
}

// Logout revokes the current session.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), mw.Token(c)); err != nil {
		writeError(c, err)
		return
	}
	c.SetCookie(mw.SessionCookie, "", -1, "/", "", h.SecureCookie, true)
	c.Status(http.StatusNoContent)
}

// Me returns the current session.
func (h *Handler) Me(c *gin.Context) {
	sess, _ := mw.CurrentSession(c)
	c.JSON(http.StatusOK, sess)
}

// ListUsers returns every account without password hashes.
func (h *Handler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Auth.ListUsers())
}

// PutUser creates or updates an account.
func (h *Handler) PutUser(c *gin.Context) {
	var in auth.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request")
		return
	}
	u, err := h.Auth.SaveUser(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser removes an account.
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.Auth.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
