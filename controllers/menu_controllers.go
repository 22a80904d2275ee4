package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
	"gorm.io/gorm"
)

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

type menuRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	ImageURL    *string `json:"image_url"`
	Price       *int64  `json:"price"`
	Available   *bool   `json:"available"`
	Veg         *bool   `json:"veg"`
}

func (r menuRequest) apply(item *models.MenuItem) {
	if r.Name != nil {
		item.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		item.Description = *r.Description
	}
	if r.Category != nil {
		item.Category = strings.ToLower(strings.TrimSpace(*r.Category))
	}
	if r.ImageURL != nil {
		item.ImageURL = *r.ImageURL
	}
	if r.Price != nil {
		item.Price = *r.Price
	}
	if r.Available != nil {
		item.Available = *r.Available
	}
	if r.Veg != nil {
		item.Veg = *r.Veg
	}
}

func (mc *MenuController) findMenu(c *gin.Context) (*models.MenuItem, bool) {
	id, err := parseIDParam(c, "menu_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return nil, false
	}

	var item models.MenuItem
	if err := mc.DB.WithContext(c.Request.Context()).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, models.ErrMenuItemNotFound)
			return nil, false
		}
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return nil, false
	}
	return &item, true
}

// GetAllMenus lists the catalog, optionally filtered by ?category= and ?available=.
func (mc *MenuController) GetAllMenus(c *gin.Context) {
	query := mc.DB.WithContext(c.Request.Context()).Order("category ASC").Order("name ASC")

	if category := c.Query("category"); category != "" && category != "all" {
		query = query.Where("category = ?", strings.ToLower(category))
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid available filter %q", raw))
			return
		}
		query = query.Where("available = ?", available)
	}
	if c.Query("veg") == "true" {
		query = query.Where("veg = ?", true)
	}

	menus := []models.MenuItem{}
	if err := query.Find(&menus).Error; err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menus", menus)
}

func (mc *MenuController) GetMenuByID(c *gin.Context) {
	item, ok := mc.findMenu(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu detail", item)
}

func (mc *MenuController) CreateMenu(c *gin.Context) {
	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item := models.MenuItem{Available: true}
	req.apply(&item)
	if err := item.Validate(); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := mc.DB.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}
	utils.InfoLogger.Printf("Menu item %d (%s) created", item.ID, item.Name)
	utils.RespondJSON(c, http.StatusCreated, "Menu created", item)
}

func (mc *MenuController) UpdateMenu(c *gin.Context) {
	item, ok := mc.findMenu(c)
	if !ok {
		return
	}

	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req.apply(item)
	if err := item.Validate(); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := mc.DB.WithContext(c.Request.Context()).Save(item).Error; err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu updated", item)
}

// SetAvailability toggles whether customers can add the item to a cart.
func (mc *MenuController) SetAvailability(c *gin.Context) {
	item, ok := mc.findMenu(c)
	if !ok {
		return
	}

	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	err := mc.DB.WithContext(c.Request.Context()).Model(item).Update("available", *req.Available).Error
	if err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}
	item.Available = *req.Available
	utils.RespondJSON(c, http.StatusOK, "Menu availability updated", item)
}

// DeleteMenu removes an item that no order references; ordered items can only be hidden.
func (mc *MenuController) DeleteMenu(c *gin.Context) {
	item, ok := mc.findMenu(c)
	if !ok {
		return
	}

	var used int64
	if err := mc.DB.WithContext(c.Request.Context()).Model(&models.OrderLine{}).Where("menu_item_id = ?", item.ID).Count(&used).Error; err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}
	if used > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("menu item appears on past orders; mark it unavailable instead"))
		return
	}

	if err := mc.DB.WithContext(c.Request.Context()).Delete(item).Error; err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}
	utils.InfoLogger.Printf("Menu item %d (%s) deleted", item.ID, item.Name)
	utils.RespondJSON(c, http.StatusOK, "Menu deleted", nil)
}
