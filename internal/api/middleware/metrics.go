package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"nus-fire-evac/backend/pkg/metrics"
)

// Metrics 请求耗时与状态码统计
// 以路由模板作为标签，未匹配路由统一记为 unmatched
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
