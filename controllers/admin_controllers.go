package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/services"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

type AdminController struct {
	Store   services.OrderStore
	Timeout time.Duration
}

func NewAdminController(store services.OrderStore, timeout time.Duration) *AdminController {
	return &AdminController{Store: store, Timeout: timeout}
}

type DashboardStats struct {
	TotalOrders  int64                        `json:"total_orders"`
	TodayOrders  int64                        `json:"today_orders"`
	TotalRevenue int64                        `json:"total_revenue"`
	TodayRevenue int64                        `json:"today_revenue"`
	ActiveOrders int64                        `json:"active_orders"`
	OrderStats   map[models.OrderStatus]int64 `json:"order_stats"`
}

// GetDashboardStats summarizes orders and revenue for the admin dashboard.
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	ctx, cancel := requestContext(c, ac.Timeout)
	defer cancel()

	counts, err := ac.Store.StatusCounts(ctx)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	total, err := ac.Store.Sales(ctx, time.Time{})
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := ac.Store.Sales(ctx, midnight)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}

	stats := DashboardStats{
		TotalOrders:  total.Orders,
		TodayOrders:  today.Orders,
		TotalRevenue: total.Revenue,
		TodayRevenue: today.Revenue,
		OrderStats:   counts,
	}
	for _, st := range models.ActiveOrderStatuses() {
		stats.ActiveOrders += counts[st]
	}
	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", stats)
}
