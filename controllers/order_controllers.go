package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/kds"
	"github.com/yeremiapane/cloud-kitchen/middlewares"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/services"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

const customerHistoryLimit = 50

type OrderController struct {
	Store    services.OrderStore
	Checkout *services.CheckoutService
	Status   *services.OrderStatusService
	Timeout  time.Duration
}

func NewOrderController(store services.OrderStore, checkout *services.CheckoutService, status *services.OrderStatusService, timeout time.Duration) *OrderController {
	return &OrderController{
		Store:    store,
		Checkout: checkout,
		Status:   status,
		Timeout:  timeout,
	}
}

// OrderDetail is an order with its lines joined to the menu.
type OrderDetail struct {
	*models.Order
	Items []models.OrderLineView `json:"items"`
}

// PlaceOrder submits a cart. The Idempotency-Key header is used when the body has no key.
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	res := oc.Checkout.Submit(c.Request.Context(), req)

	switch res.Outcome {
	case services.CheckoutCommitted:
		code, msg := http.StatusCreated, "Order placed"
		if res.Replayed {
			code, msg = http.StatusOK, "Order already placed"
		}
		utils.RespondJSON(c, code, msg, res)
	case services.CheckoutHeaderOnlyOrphan:
		utils.RespondErrorData(c, http.StatusBadGateway,
			errors.New("order was saved without its items; please retry checkout"), res)
	default:
		utils.RespondErrorData(c, statusForError(res.Err), res.Err, res)
	}
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := requestContext(c, oc.Timeout)
	defer cancel()

	order, err := oc.Store.GetOrder(ctx, id)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) GetOrderLines(c *gin.Context) {
	id, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := requestContext(c, oc.Timeout)
	defer cancel()

	if _, err := oc.Store.GetOrder(ctx, id); err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	lines, err := oc.Store.GetOrderLines(ctx, id)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order items", lines)
}

// TrackOrder looks an order up by its display id. The leading '#' may be omitted.
func (oc *OrderController) TrackOrder(c *gin.Context) {
	displayID := strings.TrimSpace(c.Param("display_id"))
	if !strings.HasPrefix(displayID, "#") {
		displayID = "#" + displayID
	}
	displayID = strings.ToUpper(displayID)

	ctx, cancel := requestContext(c, oc.Timeout)
	defer cancel()

	order, err := oc.Store.GetOrderByDisplayID(ctx, displayID)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	lines, err := oc.Store.GetOrderLines(ctx, order.ID)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order tracking", OrderDetail{Order: order, Items: lines})
}

// ListCustomerOrders returns a guest's orders. ?scope=active or ?scope=history splits them
// the way the customer's orders page does.
func (oc *OrderController) ListCustomerOrders(c *gin.Context) {
	guestID := c.Query("guest_id")
	if guestID == "" {
		utils.RespondError(c, http.StatusBadRequest, &models.ValidationError{Field: "guest_id", Message: "is required"})
		return
	}

	filter := services.OrderFilter{GuestID: guestID, Limit: customerHistoryLimit, WithLines: true}
	switch c.DefaultQuery("scope", "all") {
	case "active":
		filter.Statuses = models.ActiveOrderStatuses()
	case "history":
		filter.Statuses = []models.OrderStatus{models.OrderStatusDelivered}
	case "all":
	default:
		utils.RespondError(c, http.StatusBadRequest, &models.ValidationError{Field: "scope", Message: "must be active, history or all"})
		return
	}

	ctx, cancel := requestContext(c, oc.Timeout)
	defer cancel()

	orders, err := oc.Store.ListOrders(ctx, filter)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// ListOrders is the operator view, filtered by a comma separated ?status= list.
func (oc *OrderController) ListOrders(c *gin.Context) {
	var filter services.OrderFilter
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := models.ParseOrderStatus(part)
			if err != nil {
				utils.RespondError(c, http.StatusBadRequest, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	filter.WithLines = c.Query("with_lines") == "true"

	ctx, cancel := requestContext(c, oc.Timeout)
	defer cancel()

	orders, err := oc.Store.ListOrders(ctx, filter)
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// KitchenBoard returns active orders grouped into new, cooking and ready columns.
func (oc *OrderController) KitchenBoard(c *gin.Context) {
	ctx, cancel := requestContext(c, oc.Timeout)
	defer cancel()

	orders, err := oc.Store.ListOrders(ctx, services.OrderFilter{
		Statuses:  models.ActiveOrderStatuses(),
		WithLines: true,
	})
	if err != nil {
		utils.RespondError(c, statusForError(err), err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen board", kds.GroupBoard(orders))
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	to, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Status.Advance(c.Request.Context(), id, to, middlewares.RoleFromContext(c))
	if err != nil {
		utils.RespondErrorData(c, statusForError(err), err, order)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// AdvanceOrder moves the order to the next pipeline step.
func (oc *OrderController) AdvanceOrder(c *gin.Context) {
	id, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Status.AdvanceNext(c.Request.Context(), id, middlewares.RoleFromContext(c))
	if err != nil {
		utils.RespondErrorData(c, statusForError(err), err, order)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}
