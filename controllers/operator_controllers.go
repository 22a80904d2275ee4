package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/config"
	"github.com/yeremiapane/cloud-kitchen/middlewares"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// OperatorController signs staff in against the configured operator credentials.
type OperatorController struct {
	Operators []config.Operator
	TokenTTL  time.Duration
}

func NewOperatorController(operators []config.Operator, ttl time.Duration) *OperatorController {
	return &OperatorController{Operators: operators, TokenTTL: ttl}
}

// Login returns a JWT carrying the operator's role.
func (oc *OperatorController) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	for _, op := range oc.Operators {
		if op.Username != input.Username {
			continue
		}
		if !op.CheckPassword(input.Password) {
			break
		}

		token, err := utils.GenerateToken(op.Username, op.Role, oc.TokenTTL)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		utils.InfoLogger.Printf("Operator %s logged in (role=%s)", op.Username, op.Role)
		utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
			"token":    token,
			"username": op.Username,
			"role":     op.Role,
		})
		return
	}

	utils.ErrorLogger.Printf("Failed login for %q from %s", input.Username, c.ClientIP())
	utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
}

// Me echoes the identity carried by the caller's token.
func (oc *OperatorController) Me(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Operator profile", gin.H{
		"username": c.GetString(middlewares.ContextUsername),
		"role":     middlewares.RoleFromContext(c),
	})
}
