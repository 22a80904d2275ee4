package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// WebSocketAuthMiddleware reads the token from the query string, since browsers
// cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}
