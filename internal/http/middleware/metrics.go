package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/dispatch-core/internal/metrics"
)

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Inc()
	}
}
