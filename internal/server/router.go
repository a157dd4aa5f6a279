package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"token-vesting/internal/handler"
	"token-vesting/internal/handler/middleware"
	"token-vesting/internal/service"
	"token-vesting/pkg/monitor"
	"token-vesting/pkg/validator"
)

// RouterConfig 路由依赖
type RouterConfig struct {
	Vesting     *service.VestingService
	AuthMaxSkew time.Duration
	Now         func() time.Time // 为空时使用 time.Now
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(cfg RouterConfig) *gin.Engine {
	// 0. 初始化监控指标与校验规则
	monitor.Init()
	validator.Init()

	// 1. 创建 Engine, 访问日志走 zap
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.ZapLogger())

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck(cfg.Vesting))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	vestingHandler := handler.NewVestingHandler(cfg.Vesting)
	adminHandler := handler.NewAdminHandler(cfg.Vesting)
	auth := middleware.EIP191Auth(cfg.AuthMaxSkew, cfg.Now)

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		pools := api.Group("/pools")
		pools.GET("/:id", vestingHandler.GetPool)
		pools.GET("/:id/claimable", vestingHandler.Claimable)
		pools.GET("/:id/allocations/:address", vestingHandler.Allocations)
		pools.POST("/linear", auth, vestingHandler.OpenLinearPool)
		pools.POST("/cliff", auth, vestingHandler.OpenCliffPool)
		pools.POST("/:id/claim", auth, vestingHandler.Claim)

		api.GET("/escrow/:asset/unallocated", vestingHandler.Unallocated)
		api.GET("/migrations/:address", vestingHandler.MigratedFrom)

		admin := api.Group("/admin", auth)
		admin.POST("/pools/:id/migrate", adminHandler.Migrate)
		admin.PUT("/signer", adminHandler.SetSigner)
		admin.POST("/sweep", adminHandler.Sweep)
	}

	return r
}
