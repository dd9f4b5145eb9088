package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/pkg/tracing"
)

// HeaderRequestID 请求ID，上游已带则沿用
const HeaderRequestID = "X-Request-ID"

// RequestLogger 为每个请求生成子Logger并放进context
// 下游通过zerolog.Ctx(ctx)取用，日志自动带上request_id
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		logger := base.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if traceID := tracing.ExtractTraceID(c.Request.Context()); traceID != "" {
			event = event.Str("trace_id", traceID)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP请求")
	}
}
