package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"token-vesting/pkg/errno"
	"token-vesting/pkg/logger"
	"token-vesting/pkg/monitor"
)

// Response 统一响应体。业务失败也返回 HTTP 200, 由 code 区分
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	write(c, errno.OK.Code, errno.OK.Message, data)
}

// Error 账本返回的 Errno 原样透出; 其他错误归为 10001, 原因只进日志
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	if code == errno.InternalServerError.Code {
		logger.Error("unhandled error",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = errno.InternalServerError.Message
	}
	write(c, code, msg, gin.H{})
}

// Abort 中间件里使用, 写完响应后终止后续 handler
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func write(c *gin.Context, code int, msg string, data interface{}) {
	c.Set(monitor.CodeKey, code)
	c.JSON(http.StatusOK, Response{Code: code, Message: msg, Data: data})
}
