// Package api exposes the HTTP/JSON surface used by the shop-floor UI.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safemaint-backend/internal/auth"
	"safemaint-backend/internal/document"
	"safemaint-backend/internal/events"
	"safemaint-backend/internal/maintenance"
	"safemaint-backend/internal/remote"
	"safemaint-backend/internal/store"
	"safemaint-backend/internal/syncer"
)

// Syncer runs a full resync on demand.
type Syncer interface {
	SyncOnce(ctx context.Context) (*syncer.Report, error)
}

// Deps are the services the handlers call into.
type Deps struct {
	Repos        *store.Repositories
	Maintenance  *maintenance.Service
	Documents    *document.Service
	Auth         *auth.Service
	Sync         Syncer
	Bus          *events.Bus
	Webpush      *webpush.Options
	Logger       *zap.Logger
	SecureCookie bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	tables map[string]tableEntry
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &Handler{Deps: deps}
	if deps.Repos != nil {
		h.tables = newTableRegistry(deps.Repos)
	}
	return h
}

// writeError maps service errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoBlob):
		status = http.StatusNotFound
	case errors.Is(err, maintenance.ErrIllegalTransition),
		errors.Is(err, document.ErrInvalidStatus),
		errors.Is(err, auth.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, maintenance.ErrInvalidRequest),
		errors.Is(err, document.ErrInvalidDocument),
		errors.Is(err, auth.ErrInvalidUser):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, remote.ErrOffline):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
