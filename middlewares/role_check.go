package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// RequireRole lets the request through only for one of the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		if !allowed[role.(string)] {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access is not allowed here", role))
			c.Abort()
			return
		}

		c.Next()
	}
}
