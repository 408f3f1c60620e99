package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/middleware"
	"github.com/mx-space/widgy/internal/modules/formbuilder"
	"github.com/mx-space/widgy/internal/modules/pagebuilder"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/metrics"
	"github.com/mx-space/widgy/internal/pkg/response"
)

const version = "0.1.0"

func (a *App) registerRoutes(s *services) {
	r := a.router
	rdb := a.redis.Raw()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/health", a.health)
	r.GET("/metrics", metrics.Handler())

	authMW := middleware.Auth()
	admin := r.Group("/api/admin", middleware.PurgeOnWrite(rdb, a.logger))
	admin.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": a.cfg.Site.Name, "version": version})
	})
	widgy.NewHandler(s.tree).RegisterRoutes(admin, authMW)
	forms := formbuilder.NewHandler(s.forms, s.renderer, a.logger.Named("forms"))
	forms.RegisterRoutes(admin, authMW)
	pages := pagebuilder.NewHandler(s.pages)
	pages.RegisterRoutes(admin, authMW)

	public := r.Group("", middleware.OptionalAuth(), middleware.RateLimit(rdb, a.cfg.RateLimit, a.logger))
	pages.RegisterPublic(public.Group("", middleware.HTTPCache(rdb, middleware.HTTPCacheOptions{Disable: a.cfg.IsDev()})))
	forms.RegisterPublic(public, middleware.Idempotence(rdb))
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "ok"}
	healthy := true
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "down"
		healthy = false
	}
	if err := a.redis.Ping(ctx); err != nil {
		status["redis"] = "down"
		healthy = false
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
