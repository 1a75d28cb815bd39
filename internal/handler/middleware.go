package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const callerAddressKey = "caller_address"

// CallerAddress lifts the caller identity from the X-Caller-Address
// header into the request context. Role checks happen inside the
// services, not here.
func CallerAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Caller-Address")))
		if addr != "" {
			c.Set(callerAddressKey, addr)
		}
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerAddressKey)
}
