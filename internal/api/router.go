package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"safemaint-backend/config"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if deps.Logger != nil {
		r.Use(mw.Logger(deps.Logger))
	}

	handler := NewHandler(deps)

	limit := rate.Limit(cfg.RateLimitPerSec)
	if cfg.RateLimitPerSec <= 0 {
		limit = rate.Inf
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	// Anonymous traffic is limited per address, logged-in traffic per user.
	anonLimiter := mw.RateLimiter(limit, cfg.RateLimitBurst, mw.ByClientIP)
	userLimiter := mw.RateLimiter(limit, cfg.RateLimitBurst, mw.BySessionOrIP)

	cacheStore := mw.NewResponseCache(cfg.CacheTTL, 2*cfg.CacheTTL)
	if deps.Bus != nil {
		mw.FlushOnChange(deps.Bus, cacheStore)
	}
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	{
		api.POST("/auth/login", anonLimiter, handler.Login)
		api.GET("/vapid_public_key", anonLimiter, handler.GetVAPIDPublicKey)
	}

	authed := api.Group("")
	authed.Use(mw.RequireAuth(handler.Auth), userLimiter)
	{
		authed.POST("/auth/logout", handler.Logout)
		authed.GET("/auth/me", handler.Me)

		// GET /api/events streams change notifications
		authed.GET("/events", handler.Events)

		authed.GET("/maintenances", handler.ListMaintenances)
		authed.POST("/maintenances", handler.StartMaintenance)
		authed.GET("/maintenances/:id", handler.GetMaintenance)
		authed.POST("/maintenances/:id/pause", handler.PauseMaintenance)
		authed.POST("/maintenances/:id/partial", handler.PartialMaintenance)
		authed.POST("/maintenances/:id/resume", handler.ResumeMaintenance)
		authed.POST("/maintenances/:id/complete", handler.CompleteMaintenance)
		authed.POST("/maintenances/:id/link-om", handler.LinkOM)

		authed.GET("/documents", caching, handler.ListDocuments)
		authed.POST("/documents", handler.CreateDocument)
		authed.DELETE("/documents/trash", handler.EmptyTrash)
		authed.GET("/documents/:id", caching, handler.GetDocument)
		authed.GET("/documents/:id/file", handler.GetDocumentFile)
		authed.POST("/documents/:id/archive", handler.ArchiveDocument)
		authed.POST("/documents/:id/trash", handler.TrashDocument)
		authed.POST("/documents/:id/restore", handler.RestoreDocument)
		authed.DELETE("/documents/:id", handler.DeleteDocument)

		authed.GET("/history", caching, handler.GetHistory)

		authed.GET("/tables/:table", caching, handler.ListTable)
		authed.PUT("/tables/:table", handler.PutTableRecord)
		authed.GET("/tables/:table/:id", caching, handler.GetTableRecord)
		authed.GET("/tables/:table/:id/file", handler.GetTableFile)
		authed.DELETE("/tables/:table/:id", handler.DeleteTableRecord)

		authed.GET("/subscriptions", handler.GetSubscription)
		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)

		authed.POST("/sync", handler.Sync)
	}

	admin := authed.Group("")
	admin.Use(mw.RequireRole(model.RoleAdmin))
	{
		admin.GET("/users", handler.ListUsers)
		admin.PUT("/users", handler.PutUser)
		admin.DELETE("/users/:id", handler.DeleteUser)
	}

	return r
}

// defaultCacheTTL is used when the configuration leaves it unset.
const defaultCacheTTL = 30 * time.Second
