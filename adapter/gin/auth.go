package ginadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/negotiate"
)

// AuthMiddleware creates a Gin handler for Negotiate authentication.
// Panics on invalid configuration, which only happens during router
// setup.
func AuthMiddleware(cfg negotiate.Config) gin.HandlerFunc {
	standardMiddleware, err := negotiate.New(cfg)
	if err != nil {
		panic(err)
	}

	return func(c *gin.Context) {
		handler := standardMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, c.Request)

		if c.Writer.Written() {
			c.Abort()
		}
	}
}
