package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/markpress/markpress/internal/server/handlers/content"
	synch "github.com/markpress/markpress/internal/server/handlers/sync"
	"github.com/markpress/markpress/internal/server/middlewares"
	"github.com/markpress/markpress/internal/version"
)

func SetupRoutes(config *Config, svc *Services) http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // 8 MiB

	syncH := synch.New(svc.Sync)
	contentH := content.New(svc.Render, svc.Sync)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.SecurityHeaders())
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.RateLimiter(config.HTTP.RateLimit))
	{
		v1.POST("/preview", contentH.Preview)
		v1.GET("/content/view", contentH.View)

		syncGroup := v1.Group("/sync")
		syncGroup.Use(middlewares.AdminAuth(svc.Auth))
		{
			syncGroup.POST("/status", syncH.Status)
			syncGroup.POST("/commit", syncH.Commit)
			syncGroup.GET("/download", syncH.Download)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
