package handler

import (
	"github.com/gin-gonic/gin"

	"token-vesting/internal/handler/response"
	"token-vesting/internal/service"
)

// HealthCheck 返回账本回放/运行到的位置, 便于确认实例已追上事件日志
func HealthCheck(svc *service.VestingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ledger := svc.Ledger()
		ctx := c.Request.Context()
		response.Success(c, gin.H{
			"status":  "UP",
			"service": "vesting-server",
			"seq":     ledger.Seq(ctx),
			"pools":   ledger.PoolCount(ctx),
			"signer":  ledger.Signer(ctx).Hex(),
		})
	}
}
