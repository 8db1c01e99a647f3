// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/api/controller"
	"github.com/taskhive/api/db"
	"github.com/taskhive/api/middleware"
)

// SetupRouter wires the HTTP surface. Registration, login and refresh are
// public; everything else sits behind token verification, and resource routes
// additionally behind the permission gate.
func SetupRouter(
	controllers *controller.Controllers,
	authMiddleware *middleware.AuthMiddleware,
	gate *middleware.PermissionGate,
	cacheStore *db.CacheStore,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(cacheStore, rateLimitRequests, rateLimitDuration))

	controllers.Auth.RegisterPublicRoutes(router)

	api := router.Group("/api/v1")
	api.Use(authMiddleware.Handler())

	controllers.Auth.RegisterProtectedRoutes(api)
	controllers.User.RegisterRoutes(api, gate)
	controllers.Project.RegisterRoutes(api, gate)
	controllers.Task.RegisterRoutes(api, gate)

	return router
}
