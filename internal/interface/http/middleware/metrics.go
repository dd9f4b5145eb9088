package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// Metrics HTTP指标，path取路由模板避免标签基数爆炸
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics.HTTPRequestsInProgress != nil {
			metrics.HTTPRequestsInProgress.Inc()
			defer metrics.HTTPRequestsInProgress.Dec()
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.IncCounterVec(metrics.HTTPRequestsTotal, map[string]string{
			"method": c.Request.Method,
			"path":   path,
			"status": strconv.Itoa(c.Writer.Status()),
		})
		metrics.ObserveHistogramVec(metrics.HTTPRequestDuration, map[string]string{
			"method": c.Request.Method,
			"path":   path,
		}, time.Since(start).Seconds())
	}
}
