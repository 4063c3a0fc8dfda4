package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"receptionist-platform/internal/auth"
	"receptionist-platform/internal/httpapi"
	"receptionist-platform/internal/rbac"
	"receptionist-platform/internal/tools"
	"receptionist-platform/internal/webhook"
	"receptionist-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	db          *sql.DB
	rdb         *redis.Client
	webhook     *webhook.Router
	tools       *tools.Dispatcher
	handlers    httpapi.Handlers
	authMW      gin.HandlerFunc
	usageSecret string
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := utils.HealthCheck(ctx, deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := deps.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Voice platform webhooks and tool invocations (public, shared-secret auth).
	platform := r.Group("/")
	platform.Use(webhook.CORS())
	{
		platform.POST("/webhooks/vapi", deps.webhook.Handler)
		platform.POST("/tools/invoke", deps.tools.Handler)
	}

	// Usage endpoints are server-to-server (called by the platform glue),
	// not dashboard traffic. Shared-secret guarded: recording mutates
	// billing counters.
	usageGroup := r.Group("/usage")
	usageGroup.Use(httpapi.RequireSharedSecret(deps.usageSecret))
	{
		usageGroup.POST("/record", deps.handlers.RecordUsage)
		usageGroup.GET("", deps.handlers.GetUsageSnapshot)
		usageGroup.GET("/can-call", deps.handlers.CanMakeCall)
	}

	// Token issuance.
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", deps.handlers.Login)
		authGroup.POST("/refresh", deps.handlers.Refresh)
	}

	// protected dashboard API group
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	v1.Use(rbac.RequireTenant())
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			tid, _ := auth.TenantID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "tenant_id": tid, "role": role})
		})

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			reports.GET("/calls", deps.handlers.GetCallsSummary)
			reports.GET("/tools", deps.handlers.GetToolSummary)
		}

		bookingsGroup := v1.Group("/bookings")
		bookingsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleDispatcher, rbac.RoleSuperAdmin))
		{
			bookingsGroup.GET("", deps.handlers.ListBookings)
		}

		assistantsGroup := v1.Group("/assistants")
		assistantsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			assistantsGroup.GET("", deps.handlers.ListAssistants)
			assistantsGroup.POST("", deps.handlers.RegisterAssistant)
		}

		usageV1 := v1.Group("/usage")
		usageV1.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			usageV1.GET("/snapshot", deps.handlers.GetUsageSnapshot)
		}
	}
}
