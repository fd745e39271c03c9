package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext pulls the caller's context off the gin request. Handlers
// invoked without an attached request (direct calls in tests) get Background.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
