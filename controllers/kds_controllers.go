package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/cloud-kitchen/kds"
	"github.com/yeremiapane/cloud-kitchen/middlewares"
	"github.com/yeremiapane/cloud-kitchen/models"
)

type KDSController struct {
	Hub      *kds.Hub
	upgrader websocket.Upgrader
}

// NewKDSController accepts websocket handshakes from the given origins; empty allows any.
func NewKDSController(hub *kds.Hub, origins []string) *KDSController {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &KDSController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// KDSHandler upgrades to a websocket that receives board and order updates.
func (kc *KDSController) KDSHandler(c *gin.Context) {
	role := middlewares.RoleFromContext(c)
	if role != models.RoleAdmin && role != models.RoleStaff && role != models.RoleDelivery {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	kc.Hub.RegisterClient(ws, role)

	// screens only listen; reading detects disconnects
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kc.Hub.UnregisterClient(ws)
}
