package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/utils"
	"golang.org/x/time/rate"
)

// CheckoutRateLimiter caps order submissions across all clients.
func CheckoutRateLimiter(perSecond float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, utils.JSONResponse{
				Status:  false,
				Message: "Kitchen is busy, please retry your order in a moment",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// LogCheckoutRequest records every order submission with its outcome status code.
func LogCheckoutRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			utils.ErrorLogger.Printf("Checkout from %s failed with %d after %v", c.ClientIP(), status, time.Since(start))
			return
		}
		utils.InfoLogger.Printf("Checkout from %s finished with %d in %v", c.ClientIP(), status, time.Since(start))
	}
}
