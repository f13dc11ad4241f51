package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type RequestObserver interface {
	RequestStarted() func(method, route, status string)
}

// Metrics records every request under its route template, so ids in paths do
// not explode label cardinality.
func Metrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := observer.RequestStarted()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		done(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}
