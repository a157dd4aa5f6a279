package monitor

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vesting"

// CodeKey handler 写响应时把业务码放进 gin.Context。
// 响应统一是 HTTP 200, 只有业务码能区分成功与失败。
const CodeKey = "monitor.code"

var (
	// HTTPRequestsTotal 按路由模板与业务码统计请求
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template and business code.",
		},
		[]string{"method", "path", "code"},
	)

	// HTTPRequestDuration 账本操作都在内存里, 桶从毫秒级开始
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2.0},
		},
		[]string{"method", "path"},
	)

	initOnce sync.Once
)

// Init 注册 HTTP 与账本指标, 重复调用无副作用
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
		Vesting = NewVestingMetrics(prometheus.DefaultRegisterer)
	})
}

// PrometheusMiddleware 未匹配的路由 (FullPath 为空) 不计数, 避免 path 标签爆炸
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		if path == "" {
			return
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, codeLabel(c)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// codeLabel 没有经过统一响应的请求 (如 /metrics) 用 HTTP 状态码
func codeLabel(c *gin.Context) string {
	if code, ok := c.Get(CodeKey); ok {
		if n, ok := code.(int); ok {
			return strconv.Itoa(n)
		}
	}
	return "http_" + strconv.Itoa(c.Writer.Status())
}
