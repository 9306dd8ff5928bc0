package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adforge/core/internal/middleware"
	"github.com/adforge/core/internal/modules/billing/credits"
	"github.com/adforge/core/internal/modules/campaign"
	"github.com/adforge/core/internal/modules/generation/coordinator"
	"github.com/adforge/core/internal/modules/learning/performance"
	"github.com/adforge/core/internal/modules/storage/hosting"
	"github.com/adforge/core/internal/pkg/pagination"
	pkgredis "github.com/adforge/core/internal/pkg/redis"
	"github.com/adforge/core/internal/pkg/response"
	"github.com/adforge/core/internal/pkg/taskqueue"
)

type routeDeps struct {
	coordinator *coordinator.Handler
	performance *performance.Handler
	credits     *credits.Handler
	campaigns   *campaign.Handler
	tasks       *taskqueue.Service
	localTier   *hosting.LocalTier
}

func (a *App) registerRoutes(rc *pkgredis.Client, deps routeDeps) {
	a.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	a.router.GET("/health", func(c *gin.Context) {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": time.Since(processStart).String()})
	})

	// Local-tier assets are served straight from disk until the promotion job
	// moves them to object storage.
	if deps.localTier != nil {
		a.router.Static("/objects", deps.localTier.Dir())
	}

	a.router.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	a.router.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	api := a.router.Group("/api/v1")
	api.Use(middleware.Auth())
	api.Use(middleware.RateLimit(rc.Raw()))
	api.Use(middleware.Idempotence(rc.Raw()))

	deps.coordinator.RegisterRoutes(api)
	deps.performance.RegisterRoutes(api)
	deps.credits.RegisterRoutes(api)
	deps.campaigns.RegisterRoutes(api)

	api.GET("/metrics", func(c *gin.Context) {
		response.OK(c, a.registry.Snapshot())
	})

	api.GET("/jobs", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/jobs/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		response.Accepted(c, gin.H{"name": c.Param("name")})
	})

	api.GET("/tasks", func(c *gin.Context) {
		q := pagination.FromContext(c)
		var taskType *string
		if t := c.Query("type"); t != "" {
			taskType = &t
		}
		tasks, total, err := deps.tasks.List(c.Request.Context(), q.Page, q.Size, taskType)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
		response.Paged(c, tasks, response.Pagination{
			Total:       total,
			CurrentPage: q.Page,
			TotalPage:   totalPage,
			Size:        q.Size,
			HasNextPage: q.Page < totalPage,
		})
	})
	api.GET("/tasks/:id", func(c *gin.Context) {
		task, err := deps.tasks.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if task == nil {
			response.NotFound(c)
			return
		}
		response.OK(c, task)
	})
}

var processStart = time.Now()
