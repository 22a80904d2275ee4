// Package kds pushes kitchen board updates to connected staff screens over websockets.
package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// Event types
const (
	EventOrderUpdate = "order_update"
	EventBoardUpdate = "board_update"
	EventBoardStale  = "board_stale"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// OrderUpdate is the payload of an order_update event.
type OrderUpdate struct {
	Order models.Order       `json:"order"`
	From  models.OrderStatus `json:"from"`
}

// BoardColumn is one status column of the kitchen board.
type BoardColumn struct {
	Status models.OrderStatus `json:"status"`
	Orders []models.Order     `json:"orders"`
}

// Hub holds every connected board client and its role.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = role
	metrics.BoardClients.Set(float64(len(h.clients)))
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	metrics.BoardClients.Set(float64(len(h.clients)))
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// OrderStatusChanged broadcasts a single accepted transition.
func (h *Hub) OrderStatusChanged(order models.Order, from models.OrderStatus) {
	h.broadcast(Message{
		Event: EventOrderUpdate,
		Data:  OrderUpdate{Order: order, From: from},
	})
}

// BroadcastBoard sends the full board, grouped by status in pipeline order.
func (h *Hub) BroadcastBoard(orders []models.Order) {
	h.broadcast(Message{
		Event: EventBoardUpdate,
		Data:  GroupBoard(orders),
	})
}

// BroadcastStale tells screens the board could not be refreshed.
func (h *Hub) BroadcastStale(reason string) {
	h.broadcast(Message{
		Event: EventBoardStale,
		Data:  reason,
	})
}

// GroupBoard splits orders into active status columns, keeping each column's order.
func GroupBoard(orders []models.Order) []BoardColumn {
	statuses := models.ActiveOrderStatuses()
	columns := make([]BoardColumn, len(statuses))
	index := make(map[models.OrderStatus]int, len(statuses))
	for i, st := range statuses {
		columns[i] = BoardColumn{Status: st, Orders: []models.Order{}}
		index[st] = i
	}
	for _, o := range orders {
		if i, ok := index[o.Status]; ok {
			columns[i].Orders = append(columns[i].Orders, o)
		}
	}
	return columns
}

// broadcast writes to every client; clients that fail the write are dropped.
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, role := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error sending %s to %s client, dropping: %v", msg.Event, role, err)
			h.removeLocked(conn)
		}
	}
}
