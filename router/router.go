package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/config"
	"github.com/yeremiapane/cloud-kitchen/controllers"
	"github.com/yeremiapane/cloud-kitchen/kds"
	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/middlewares"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/services"
	"gorm.io/gorm"
)

// Options carries everything the HTTP layer needs.
type Options struct {
	DB        *gorm.DB
	Store     services.OrderStore
	Checkout  *services.CheckoutService
	Status    *services.OrderStatusService
	Hub       *kds.Hub
	Operators []config.Operator

	TokenTTL       time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.CORSOrigins))
	r.Use(middlewares.LoggerMiddleware())
	if opts.RateLimitRPS > 0 {
		r.Use(middlewares.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).RateLimit())
	}

	menuCtrl := controllers.NewMenuController(opts.DB)
	orderCtrl := controllers.NewOrderController(opts.Store, opts.Checkout, opts.Status, opts.RequestTimeout)
	operatorCtrl := controllers.NewOperatorController(opts.Operators, opts.TokenTTL)
	adminCtrl := controllers.NewAdminController(opts.Store, opts.RequestTimeout)
	kdsCtrl := controllers.NewKDSController(opts.Hub, opts.CORSOrigins)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// customer storefront
	r.GET("/menu", menuCtrl.GetAllMenus)
	r.GET("/menu/:menu_id", menuCtrl.GetMenuByID)
	r.POST("/checkout", middlewares.CheckoutRateLimiter(10, 20), middlewares.LogCheckoutRequest(), orderCtrl.PlaceOrder)
	r.GET("/orders", orderCtrl.ListCustomerOrders)
	r.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	r.GET("/orders/:order_id/lines", orderCtrl.GetOrderLines)
	r.GET("/track/:display_id", orderCtrl.TrackOrder)

	r.POST("/admin/login", middlewares.NewStrictRateLimiter().RateLimit(), operatorCtrl.Login)

	r.GET("/ws/board", middlewares.WebSocketAuthMiddleware(), kdsCtrl.KDSHandler)

	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/me", operatorCtrl.Me)

		// delivery riders see the ready column and hand orders over
		auth.GET("/orders", orderCtrl.ListOrders)
		auth.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
		auth.POST("/orders/:order_id/advance", orderCtrl.AdvanceOrder)
	}

	kitchen := auth.Group("")
	kitchen.Use(middlewares.RequireRole(models.RoleAdmin, models.RoleStaff))
	{
		kitchen.GET("/board", orderCtrl.KitchenBoard)
		kitchen.GET("/orders/:order_id/lines", orderCtrl.GetOrderLines)
	}

	admin := auth.Group("")
	admin.Use(middlewares.RequireRole(models.RoleAdmin))
	{
		admin.GET("/stats", adminCtrl.GetDashboardStats)
		admin.POST("/menu", menuCtrl.CreateMenu)
		admin.PATCH("/menu/:menu_id", menuCtrl.UpdateMenu)
		admin.PATCH("/menu/:menu_id/availability", menuCtrl.SetAvailability)
		admin.DELETE("/menu/:menu_id", menuCtrl.DeleteMenu)
	}

	return r
}
