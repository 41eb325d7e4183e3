package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/handler"
	"github.com/blues/carbonledger/internal/logic"
	"github.com/blues/carbonledger/internal/metrics"
)

// Dependencies 路由依赖的组件
type Dependencies struct {
	Facade  *logic.Facade
	Journal handler.OperationLister // 可为 nil
	Metrics *metrics.Metrics        // 可为 nil
	// Health 附加到 /health 的账本状态, 可为 nil
	Health func(ctx context.Context) map[string]interface{}
}

func Setup(deps Dependencies, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "carbonledger",
			"busy":    deps.Facade.IsBusy(),
		}
		if deps.Health != nil {
			body["ledger"] = deps.Health(c.Request.Context())
		}
		c.JSON(http.StatusOK, body)
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// API版本组
	v1 := r.Group("/api/v1")
	v1.Use(rateLimitMiddleware(NewClientLimiter(cfg.Limits.Rate, cfg.Limits.Burst)))
	{
		// 项目相关路由
		projectHandler := handler.NewProjectHandler(deps.Facade)
		projects := v1.Group("/projects")
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.GetProjects)
			projects.GET("/:id", projectHandler.GetProject)
			projects.POST("/:id/approve", projectHandler.ApproveProject)
			projects.POST("/:id/reject", projectHandler.RejectProject)
			projects.POST("/:id/issue", projectHandler.IssueCredits)
		}

		// 挂单相关路由
		listingHandler := handler.NewListingHandler(deps.Facade)
		listings := v1.Group("/listings")
		{
			listings.POST("", listingHandler.CreateListing)
			listings.GET("", listingHandler.GetListings)
			listings.GET("/:id", listingHandler.GetListing)
			listings.POST("/:id/buy", listingHandler.BuyListing)
			listings.POST("/:id/cancel", listingHandler.CancelListing)
		}

		accountHandler := handler.NewAccountHandler(deps.Facade)
		v1.GET("/accounts/:address/balance", accountHandler.GetBalance)
		v1.GET("/status", accountHandler.GetStatus)
		v1.POST("/refresh", accountHandler.Refresh)

		operationHandler := handler.NewOperationHandler(deps.Journal)
		v1.GET("/operations", operationHandler.GetOperations)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+handler.WalletHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// 限流中间件, 按客户端IP计数
func rateLimitMiddleware(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP(), time.Now()) {
			handler.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// 请求计数中间件, 使用路由模板避免标签基数膨胀
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.IncHTTPRequest(route, c.Writer.Status())
	}
}
